// Package mauidev holds build metadata shared by the mauidev command and
// its MCP server.
package mauidev

// Version is the mauidev release version.
const Version = "0.3.0"
