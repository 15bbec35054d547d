package chat_test

import (
	"testing"

	"github.com/omochice/support-chat/internal/chat"
	"github.com/omochice/support-chat/pkg/protocol"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNotifier_NotifyUpdateWithoutAdmin(t *testing.T) {
	reg := chat.NewRegistry()
	notifier := chat.NewNotifier(reg)

	assert.False(t, notifier.NotifyUpdate(chat.Session{Identity: "u-1"}))
}

func TestNotifier_NotifyUpdate(t *testing.T) {
	reg := chat.NewRegistry()
	notifier := chat.NewNotifier(reg)
	admin := newRecorder("a")
	_, err := reg.UpsertLogin("admin-1", "", true, admin)
	require.NoError(t, err)

	assert.True(t, notifier.NotifyUpdate(chat.Session{Identity: "u-1", Online: true}))

	events := admin.OfType(protocol.EventTypeUpdateUser)
	require.Len(t, events, 1)
	assert.Equal(t, "u-1", events[0].Session.Identity)
}

func TestNotifier_NotifyRoster(t *testing.T) {
	notifier := chat.NewNotifier(chat.NewRegistry())
	h := newRecorder("a")

	notifier.NotifyRoster(h, []chat.Session{{Identity: "u-1"}, {Identity: "u-2", Online: true}})

	events := h.Events()
	require.Len(t, events, 1)
	assert.Equal(t, protocol.EventTypeListUsers, events[0].Type)
	assert.Len(t, events[0].Sessions, 2)
}

func TestNotifier_NotifySelected(t *testing.T) {
	reg := chat.NewRegistry()
	notifier := chat.NewNotifier(reg)
	admin, user := newRecorder("a"), newRecorder("u")
	_, err := reg.UpsertLogin("admin-1", "", true, admin)
	require.NoError(t, err)
	_, err = reg.UpsertLogin("u-1", "Alice", false, user)
	require.NoError(t, err)
	reg.AppendHistory("u-1", chat.Message{ID: "m1", Target: "u-1", Body: "hi"})

	require.NoError(t, notifier.NotifySelected(admin, "u-1"))

	events := admin.OfType(protocol.EventTypeSelectUser)
	require.Len(t, events, 1)
	assert.Equal(t, "Alice", events[0].Session.Name)
	require.Len(t, events[0].Session.History, 1)
	assert.Equal(t, "hi", events[0].Session.History[0].Body)
}

func TestNotifier_NotifySelectedErrors(t *testing.T) {
	reg := chat.NewRegistry()
	notifier := chat.NewNotifier(reg)
	admin, user := newRecorder("a"), newRecorder("u")
	_, err := reg.UpsertLogin("u-1", "", false, user)
	require.NoError(t, err)

	assert.ErrorIs(t, notifier.NotifySelected(admin, "u-1"), chat.ErrNotAdmin, "no admin online")

	_, err = reg.UpsertLogin("admin-1", "", true, admin)
	require.NoError(t, err)

	assert.ErrorIs(t, notifier.NotifySelected(user, "u-1"), chat.ErrNotAdmin)
	assert.ErrorIs(t, notifier.NotifySelected(admin, "ghost"), chat.ErrUnknownSession)
	assert.Empty(t, admin.Events())
	assert.Empty(t, user.Events())
}
