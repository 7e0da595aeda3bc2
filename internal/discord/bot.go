// Package discord is the chat front end: it delivers broadcasts and answers
// the ! commands.
package discord

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"strconv"
	"strings"
	"sync"

	"github.com/alceccentric/mltd-borderbot/internal/channels"
	"github.com/alceccentric/mltd-borderbot/internal/config"
	"github.com/alceccentric/mltd-borderbot/internal/dao"
	"github.com/alceccentric/mltd-borderbot/internal/format"
	"github.com/alceccentric/mltd-borderbot/internal/matsuri"
	"github.com/alceccentric/mltd-borderbot/internal/utils"
	"github.com/alceccentric/mltd-borderbot/models"
	"github.com/bwmarrin/discordgo"
	"github.com/sirupsen/logrus"
	"go.uber.org/multierr"
)

const (
	COMMAND_PREFIX = "!"
	PURGE_LIMIT    = 100
)

// Session is the part of *discordgo.Session the bot talks to.
type Session interface {
	ChannelMessageSend(channelID string, content string, options ...discordgo.RequestOption) (*discordgo.Message, error)
	Channel(channelID string, options ...discordgo.RequestOption) (*discordgo.Channel, error)
	Guild(guildID string, options ...discordgo.RequestOption) (*discordgo.Guild, error)
	ChannelMessages(channelID string, limit int, beforeID, afterID, aroundID string, options ...discordgo.RequestOption) ([]*discordgo.Message, error)
	ChannelMessageDelete(channelID, messageID string, options ...discordgo.RequestOption) error
}

var _ Session = (*discordgo.Session)(nil)

// ChannelCache is the gateway state lookup, satisfied by *discordgo.State.
type ChannelCache interface {
	Channel(channelID string) (*discordgo.Channel, error)
}

var _ ChannelCache = (*discordgo.State)(nil)

// Messenger delivers plain text to channels through a Session.
type Messenger struct {
	session Session
	state   ChannelCache
}

// NewMessenger consults state before asking the REST API; state may be nil.
func NewMessenger(session Session, state ChannelCache) *Messenger {
	return &Messenger{session: session, state: state}
}

func (m *Messenger) Send(ctx context.Context, channelID, text string) error {
	_, err := m.session.ChannelMessageSend(channelID, text, discordgo.WithContext(ctx))
	return err
}

// ChannelExists reports false only when Discord answers 404 for channelID.
// Other REST failures keep the channel registered.
func (m *Messenger) ChannelExists(ctx context.Context, channelID string) bool {
	if m.state != nil {
		if ch, err := m.state.Channel(channelID); err == nil && ch != nil {
			return true
		}
	}
	_, err := m.session.Channel(channelID, discordgo.WithContext(ctx))
	if err == nil {
		return true
	}
	var restErr *discordgo.RESTError
	if errors.As(err, &restErr) && restErr.Response != nil && restErr.Response.StatusCode == http.StatusNotFound {
		return false
	}
	logrus.WithError(err).Warnf("Failed to look up channel %s, keeping it", channelID)
	return true
}

type BorderRenderer interface {
	Render(ctx context.Context, eventId *int) (string, error)
}

type Notifier interface {
	Broadcast(ctx context.Context, text string) ([]channels.Delivery, error)
}

type Bot struct {
	session          Session
	messenger        *Messenger
	registry         *channels.Registry
	notifier         Notifier
	borders          BorderRenderer
	texts            config.Texts
	announcementPath string

	mu     sync.RWMutex
	selfID string
}

func NewBot(session Session, registry *channels.Registry, notifier Notifier, borders BorderRenderer, texts config.Texts, announcementPath string) *Bot {
	return &Bot{
		session:          session,
		messenger:        NewMessenger(session, nil),
		registry:         registry,
		notifier:         notifier,
		borders:          borders,
		texts:            texts,
		announcementPath: announcementPath,
	}
}

// NewSession creates a bot session with the intents needed to read commands.
func NewSession(token string) (*discordgo.Session, error) {
	session, err := discordgo.New("Bot " + token)
	if err != nil {
		return nil, fmt.Errorf("failed to create discord session: %w", err)
	}
	session.Identify.Intents = discordgo.IntentsGuilds | discordgo.IntentsGuildMessages | discordgo.IntentMessageContent
	return session, nil
}

// Attach registers the bot handlers on s. Handlers run with ctx.
func (b *Bot) Attach(ctx context.Context, s *discordgo.Session) {
	s.AddHandler(func(_ *discordgo.Session, r *discordgo.Ready) {
		b.HandleReady(ctx, r)
	})
	s.AddHandler(func(_ *discordgo.Session, m *discordgo.MessageCreate) {
		b.HandleMessage(ctx, m)
	})
}

func (b *Bot) self() string {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return b.selfID
}

// HandleReady greets every registered channel and prunes the ones that are gone.
func (b *Bot) HandleReady(ctx context.Context, r *discordgo.Ready) {
	name := ""
	if r.User != nil {
		b.mu.Lock()
		b.selfID = r.User.ID
		b.mu.Unlock()
		name = r.User.Username
	}
	logrus.Infof("Logged in as %s to %d servers, registered to post in %d channels", name, len(r.Guilds), b.registry.Len())

	if _, err := b.notifier.Broadcast(ctx, b.greeting(name)); err != nil {
		logrus.WithError(err).Warn("Greeting did not reach every channel")
	}
}

func (b *Bot) greeting(name string) string {
	if b.announcementPath != "" && utils.LocalFileExists(b.announcementPath) {
		data, err := os.ReadFile(b.announcementPath)
		if err == nil {
			return format.Fence + "\n" + string(data) + format.Fence
		}
		logrus.WithError(err).Warnf("Failed to read announcement %s", b.announcementPath)
	}
	return fmt.Sprintf(b.texts.Recover, name)
}

func (b *Bot) HandleMessage(ctx context.Context, m *discordgo.MessageCreate) {
	if m.Author == nil || m.Author.Bot || m.Author.ID == b.self() {
		return
	}
	fields := strings.Fields(m.Content)
	if len(fields) == 0 || !strings.HasPrefix(fields[0], COMMAND_PREFIX) {
		return
	}
	command, args := strings.TrimPrefix(fields[0], COMMAND_PREFIX), fields[1:]

	switch command {
	case "border":
		b.reply(ctx, m.ChannelID, b.border(ctx, args))
	case "add_channel":
		b.ownerOnly(ctx, m, func() { b.addChannel(ctx, args) })
	case "remove_channel":
		b.ownerOnly(ctx, m, func() { b.removeChannel(ctx, args) })
	case "purge":
		b.ownerOnly(ctx, m, func() { b.purge(ctx, m.ChannelID, args) })
	}
}

func (b *Bot) reply(ctx context.Context, channelID, text string) {
	if err := b.messenger.Send(ctx, channelID, text); err != nil {
		logrus.WithError(err).Errorf("Failed to reply in channel %s", channelID)
	}
}

func (b *Bot) ownerOnly(ctx context.Context, m *discordgo.MessageCreate, run func()) {
	if !b.isOwner(m) {
		b.reply(ctx, m.ChannelID, b.texts.NoPermission)
		return
	}
	run()
}

func (b *Bot) isOwner(m *discordgo.MessageCreate) bool {
	if m.GuildID == "" {
		return false
	}
	guild, err := b.session.Guild(m.GuildID)
	if err != nil {
		logrus.WithError(err).Warnf("Failed to look up guild %s", m.GuildID)
		return false
	}
	return guild.OwnerID == m.Author.ID
}

func (b *Bot) border(ctx context.Context, args []string) string {
	var eventId *int
	if len(args) > 0 {
		id, err := strconv.Atoi(args[0])
		if err != nil {
			return b.texts.EventNotFound
		}
		eventId = &id
	}

	text, err := b.borders.Render(ctx, eventId)
	switch {
	case err == nil:
		return text
	case errors.Is(err, dao.ErrNotFound):
		return b.texts.CacheMiss
	case errors.Is(err, matsuri.ErrNoBorderForEvent):
		return b.texts.NoBorder
	case errors.Is(err, matsuri.ErrEventNotFound):
		return b.texts.EventNotFound
	default:
		logrus.WithError(err).Error("Failed to render border")
		if eventId == nil {
			return b.texts.CacheMiss
		}
		return b.texts.EventNotFound
	}
}

// parseChannelMention accepts "<#id>" as well as a bare id.
func parseChannelMention(arg string) (string, bool) {
	id := strings.TrimSuffix(strings.TrimPrefix(arg, "<#"), ">")
	if _, err := strconv.ParseUint(id, 10, 64); err != nil {
		return "", false
	}
	return id, true
}

func (b *Bot) addChannel(ctx context.Context, args []string) {
	if len(args) == 0 {
		return
	}
	id, ok := parseChannelMention(args[0])
	if !ok {
		return
	}
	ch, err := b.session.Channel(id)
	if err != nil {
		logrus.WithError(err).Warnf("Channel %s cannot be resolved", id)
		return
	}
	info := models.Channel{ID: ch.ID, Name: ch.Name, Server: ch.GuildID}
	if guild, err := b.session.Guild(ch.GuildID); err == nil {
		info.Server = guild.Name
	}

	logrus.Infof("Registering channel %s...", info.Name)
	added, err := b.registry.Add(ctx, info)
	if err != nil {
		logrus.WithError(err).Errorf("Failed to register channel %s", info.Name)
		return
	}
	if !added {
		logrus.Info("Channel already registered. Ignored.")
		return
	}
	logrus.Infof("Registered channel %s to list.", info.Name)
	b.reply(ctx, info.ID, b.texts.Greet)
}

func (b *Bot) removeChannel(ctx context.Context, args []string) {
	if len(args) == 0 {
		return
	}
	id, ok := parseChannelMention(args[0])
	if !ok {
		return
	}
	logrus.Infof("Unregistering channel %s...", id)
	if _, err := b.registry.Remove(ctx, id); err != nil {
		logrus.WithError(err).Errorf("Failed to unregister channel %s", id)
		return
	}
	b.reply(ctx, id, b.texts.Bye)
}

func (b *Bot) purge(ctx context.Context, channelID string, args []string) {
	if len(args) == 0 {
		b.reply(ctx, channelID, b.texts.PurgeWarning)
		return
	}
	if args[0] != "confirm" {
		b.reply(ctx, channelID, b.texts.PurgeCanceled)
		return
	}
	b.reply(ctx, channelID, b.texts.PurgeConfirm)
	deleted, err := b.deleteOwnMessages(ctx, channelID)
	if err != nil {
		logrus.WithError(err).Warnf("Some messages in channel %s were not deleted", channelID)
	}
	logrus.Infof("Deleted %d message(s) from channel %s", deleted, channelID)
}

// deleteOwnMessages removes the bot's messages among the last PURGE_LIMIT
// messages of a registered channel.
func (b *Bot) deleteOwnMessages(ctx context.Context, channelID string) (int, error) {
	if !b.registry.Contains(channelID) {
		return 0, nil
	}
	messages, err := b.session.ChannelMessages(channelID, PURGE_LIMIT, "", "", "", discordgo.WithContext(ctx))
	if err != nil {
		return 0, err
	}
	self := b.self()
	deleted := 0
	var errs error
	for _, msg := range messages {
		if msg.Author == nil || msg.Author.ID != self {
			continue
		}
		if err := b.session.ChannelMessageDelete(channelID, msg.ID, discordgo.WithContext(ctx)); err != nil {
			errs = multierr.Append(errs, err)
			continue
		}
		deleted++
	}
	return deleted, errs
}
