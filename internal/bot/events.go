package bot

import (
	"context"
	"sync"
	"time"

	"github.com/disgoorg/disgo/events"
	"github.com/robalyx/autoban/internal/autoban"
	platform "github.com/robalyx/autoban/internal/discord"
	"go.uber.org/zap"
	"golang.org/x/sync/semaphore"
)

// Dispatcher receives converted member events.
type Dispatcher interface {
	OnMemberJoin(ctx context.Context, member *autoban.Member) error
	OnMemberUpdate(ctx context.Context, before, after *autoban.Member) error
	OnVoiceStateUpdate(ctx context.Context, member *autoban.Member, before, after *string) error
	OnMessage(ctx context.Context, member *autoban.Member, channelID string) error
	OnBan(ctx context.Context, guildID, userID, username string) error
}

// EventHandler converts gateway events and hands them to the dispatcher.
// Each event runs in its own goroutine, bounded by a weighted semaphore.
type EventHandler struct {
	dispatcher Dispatcher
	sem        *semaphore.Weighted
	timeout    time.Duration
	wg         sync.WaitGroup
	logger     *zap.Logger
}

// NewEventHandler creates an event handler that runs at most maxConcurrent
// dispatches at once, each bounded by timeout.
func NewEventHandler(dispatcher Dispatcher, maxConcurrent int64, timeout time.Duration, logger *zap.Logger) *EventHandler {
	if maxConcurrent <= 0 {
		maxConcurrent = 1
	}

	return &EventHandler{
		dispatcher: dispatcher,
		sem:        semaphore.NewWeighted(maxConcurrent),
		timeout:    timeout,
		logger:     logger.Named("events"),
	}
}

// OnGuildMemberJoin evaluates join rules for the new member.
func (h *EventHandler) OnGuildMemberJoin(event *events.GuildMemberJoin) {
	member := platform.MemberSnapshot(event.GuildID, event.Member)
	h.run("member_join", func(ctx context.Context) error {
		return h.dispatcher.OnMemberJoin(ctx, member)
	})
}

// OnGuildMemberUpdate evaluates role rules. The previous state comes from the
// member cache and is absent when the member was not cached.
func (h *EventHandler) OnGuildMemberUpdate(event *events.GuildMemberUpdate) {
	var before *autoban.Member
	if event.OldMember.User.ID != 0 {
		before = platform.MemberSnapshot(event.GuildID, event.OldMember)
	}

	after := platform.MemberSnapshot(event.GuildID, event.Member)
	h.run("member_update", func(ctx context.Context) error {
		return h.dispatcher.OnMemberUpdate(ctx, before, after)
	})
}

// OnGuildVoiceStateUpdate evaluates voice rules.
func (h *EventHandler) OnGuildVoiceStateUpdate(event *events.GuildVoiceStateUpdate) {
	member := platform.MemberSnapshot(event.VoiceState.GuildID, event.Member)
	before := platform.ChannelIDString(event.OldVoiceState.ChannelID)
	after := platform.ChannelIDString(event.VoiceState.ChannelID)

	h.run("voice_state_update", func(ctx context.Context) error {
		return h.dispatcher.OnVoiceStateUpdate(ctx, member, before, after)
	})
}

// OnGuildMessageCreate evaluates message rules and records introductions.
func (h *EventHandler) OnGuildMessageCreate(event *events.GuildMessageCreate) {
	if event.Message.Author.Bot || event.Message.WebhookID != nil {
		return
	}

	member := platform.MessageAuthorSnapshot(event.GuildID, event.Message)
	channelID := event.ChannelID.String()

	h.run("message_create", func(ctx context.Context) error {
		return h.dispatcher.OnMessage(ctx, member, channelID)
	})
}

// OnGuildBan records the ban.
func (h *EventHandler) OnGuildBan(event *events.GuildBan) {
	guildID := event.GuildID.String()
	userID := event.User.ID.String()
	username := event.User.Username

	h.run("guild_ban", func(ctx context.Context) error {
		return h.dispatcher.OnBan(ctx, guildID, userID, username)
	})
}

// Wait blocks until every running dispatch has finished.
func (h *EventHandler) Wait() {
	h.wg.Wait()
}

// run executes fn in a goroutine with panic recovery and a timeout.
func (h *EventHandler) run(name string, fn func(ctx context.Context) error) {
	h.wg.Add(1)

	go func() {
		defer h.wg.Done()

		if err := h.sem.Acquire(context.Background(), 1); err != nil {
			return
		}
		defer h.sem.Release(1)

		start := time.Now()
		defer func() {
			if r := recover(); r != nil {
				h.logger.Error("Panic in event handler",
					zap.String("event", name),
					zap.Any("panic", r))
			}

			h.logger.Debug("Event handled",
				zap.String("event", name),
				zap.Duration("duration", time.Since(start)))
		}()

		ctx, cancel := context.WithTimeout(context.Background(), h.timeout)
		defer cancel()

		if err := fn(ctx); err != nil {
			h.logger.Error("Failed to handle event",
				zap.String("event", name),
				zap.Error(err))
		}
	}()
}
