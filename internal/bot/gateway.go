package bot

import (
	"time"

	"github.com/disgoorg/disgo/bot"
)

// gatewayStats reports connection stats of a disgo client to the health worker.
type gatewayStats struct {
	client bot.Client
}

// Latency returns the last heartbeat round trip, zero before the gateway opened.
func (g gatewayStats) Latency() time.Duration {
	if !g.client.HasGateway() {
		return 0
	}

	return g.client.Gateway().Latency()
}

// GuildCount returns the number of cached guilds.
func (g gatewayStats) GuildCount() int {
	return g.client.Caches().GuildsLen()
}
