// Package common contiene el catálogo de infraestructura compartido por
// los módulos de enumeración y los helpers para traducir errores de
// plataforma en outcomes.
package common

// Dominios principales de la plataforma. Cada módulo selecciona el
// subconjunto relevante para sus probes.
var CoreDomains = []string{
	"discord.com",
	"discordapp.com",
	"discord.gg",
	"discordapp.net",
	"discord.media",
}

// CDNHosts son los hosts de distribución de assets.
var CDNHosts = []string{
	"cdn.discordapp.com",
	"media.discordapp.net",
	"images-ext-1.discordapp.net",
}

// APIBase es la base de la API REST pública.
const APIBase = "https://discord.com/api/v10"

// StatusBase es la base de la página de estado.
const StatusBase = "https://status.discord.com"

// GGBase es la base del acortador de invites.
const GGBase = "https://discord.gg"
