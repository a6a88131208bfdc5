// internal/testutil/fixtures.go
package testutil

// Fixture data para tests (valores primitivos solamente, sin dependencias de domain)

// FixtureDomains contiene dominios de prueba válidos.
var FixtureDomains = []string{
	"discord.com",
	"discord.gg",
	"cdn.discordapp.com",
	"media.discordapp.net",
}

// FixtureIPs contiene IPs de prueba.
var FixtureIPs = []string{
	"162.159.128.233",
	"162.159.130.234",
	"8.8.8.8",
}
