// Package health sends heartbeat and deploy notices to configured channels.
package health

import (
	"fmt"
	"strconv"
	"time"

	"github.com/disgoorg/disgo/discord"
)

// Status classifies gateway health by latency.
type Status string

const (
	StatusHealthy   Status = "Healthy"
	StatusDegraded  Status = "Degraded"
	StatusUnhealthy Status = "Unhealthy"
)

const (
	colorHealthy   = 0x2ECC71
	colorDegraded  = 0xF1C40F
	colorUnhealthy = 0xE74C3C
	colorDeploy    = 0x5865F2
)

// Classify returns the status for a gateway latency.
func Classify(latency time.Duration) Status {
	switch ms := latency.Milliseconds(); {
	case ms < 200:
		return StatusHealthy
	case ms < 500:
		return StatusDegraded
	default:
		return StatusUnhealthy
	}
}

// Color returns the embed color of the status.
func (s Status) Color() int {
	switch s {
	case StatusHealthy:
		return colorHealthy
	case StatusDegraded:
		return colorDegraded
	case StatusUnhealthy:
		return colorUnhealthy
	default:
		return colorUnhealthy
	}
}

// Report is one heartbeat measurement.
type Report struct {
	Status  Status
	Uptime  time.Duration
	Latency time.Duration
	Guilds  int
	Boot    time.Time
	Time    time.Time
}

// FormatUptime renders an uptime as hours, minutes and seconds.
func FormatUptime(d time.Duration) string {
	total := int64(d / time.Second)
	return fmt.Sprintf("%dh %dm %ds", total/3600, total%3600/60, total%60)
}

// BuildHeartbeatEmbed builds the periodic heartbeat embed.
func BuildHeartbeatEmbed(report Report) discord.Embed {
	return discord.NewEmbedBuilder().
		SetTitle("Heartbeat: "+string(report.Status)).
		SetColor(report.Status.Color()).
		AddField("Uptime", FormatUptime(report.Uptime), true).
		AddField("Latency", strconv.FormatInt(report.Latency.Milliseconds(), 10)+"ms", true).
		AddField("Guilds", strconv.Itoa(report.Guilds), true).
		SetFooterText("Boot: " + report.Boot.UTC().Format("2006-01-02 15:04 UTC")).
		SetTimestamp(report.Time).
		Build()
}

// BuildDeployEmbed builds the startup notice.
func BuildDeployEmbed(boot time.Time, guilds int, now time.Time) discord.Embed {
	return discord.NewEmbedBuilder().
		SetTitle("Deploy Complete").
		SetColor(colorDeploy).
		AddField("Boot", boot.UTC().Format("2006-01-02 15:04 UTC"), true).
		AddField("Guilds", strconv.Itoa(guilds), true).
		SetTimestamp(now).
		Build()
}
