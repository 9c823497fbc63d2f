package gameserver

import (
	"strings"
	"time"

	"github.com/cory-johannsen/hangout/internal/game/session"
	"github.com/cory-johannsen/hangout/internal/protocol"
)

// Chat bubble lifetimes by word count.
const (
	ShortChatTTL  = 3 * time.Second
	MediumChatTTL = 5 * time.Second
	LongChatTTL   = 8 * time.Second
)

// ChatTTL returns how long msg stays visible.
//
// Postcondition: fewer than 4 words → ShortChatTTL; fewer than 7 → MediumChatTTL; otherwise LongChatTTL.
func ChatTTL(msg string) time.Duration {
	words := len(strings.Fields(msg))
	switch {
	case words < 4:
		return ShortChatTTL
	case words < 7:
		return MediumChatTTL
	default:
		return LongChatTTL
	}
}

// NormalizeChat trims text and truncates it to session.MaxChatLength runes.
//
// Postcondition: Returns ("", false) if nothing but whitespace remains.
func NormalizeChat(text string) (string, bool) {
	msg := strings.TrimSpace(text)
	if msg == "" {
		return "", false
	}
	if r := []rune(msg); len(r) > session.MaxChatLength {
		msg = string(r[:session.MaxChatLength])
	}
	return msg, true
}

// Chat sets connID's chat bubble and schedules its removal. A newer message
// supersedes the pending removal of an older one.
//
// Postcondition: The room receives userChat now and userChatCleared after
// ChatTTL, unless another message was sent in between.
func (e *Engine) Chat(connID, text string) {
	msg, ok := NormalizeChat(text)
	if !ok {
		return
	}

	e.mu.Lock()
	defer e.mu.Unlock()

	sess, ok := e.sessions.Get(connID)
	if !ok {
		return
	}
	sess.ChatGeneration++
	gen := sess.ChatGeneration
	sess.ChatMessage = msg

	e.gw.Broadcast(sess.Room, "", protocol.EventUserChat, protocol.UserChat{
		ID:       connID,
		Username: sess.Username,
		Message:  msg,
	})
	e.sched.AfterFunc(ChatTTL(msg), func() { e.clearChat(connID, gen) })
}

func (e *Engine) clearChat(connID string, gen uint64) {
	e.mu.Lock()
	defer e.mu.Unlock()

	sess, ok := e.sessions.Get(connID)
	if !ok || sess.ChatGeneration != gen {
		return
	}
	sess.ChatMessage = ""
	e.gw.Broadcast(sess.Room, "", protocol.EventUserChatCleared, connID)
}
