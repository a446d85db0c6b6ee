package identity

import (
	"context"
	"sync"
	"time"
)

// MuteType selects how a MuteRule's event list is read.
type MuteType string

const (
	// MuteInclude mutes only the listed events.
	MuteInclude MuteType = "include"
	// MuteExclude mutes everything except the listed events.
	MuteExclude MuteType = "exclude"
	// MuteAll mutes every event.
	MuteAll MuteType = "all"
)

// MuteRule is one user's mute configuration.
type MuteRule struct {
	UserID int64        `json:"userId"`
	Type   MuteType     `json:"type"`
	Events []MutedEvent `json:"events"`
}

// MutedEvent lists actions of one event. Nil Actions covers every action.
type MutedEvent struct {
	EventName string   `json:"eventName"`
	Actions   []string `json:"actions"`
}

// MuteList answers whether a sender's events should be dropped.
type MuteList struct {
	backend MuteBackend
	opts    options

	mu       sync.RWMutex
	loaded   bool
	loadedAt time.Time
	rules    []MuteRule
}

func NewMuteList(backend MuteBackend, opts ...Option) *MuteList {
	return &MuteList{backend: backend, opts: newOptions(opts)}
}

func (l *MuteList) Load(ctx context.Context) error {
	rules, err := l.backend.LoadMutes(ctx)
	if err != nil {
		return err
	}
	l.mu.Lock()
	l.rules = rules
	l.loaded = true
	l.loadedAt = l.opts.now()
	l.mu.Unlock()
	l.opts.logger.Debug().Int("rules", len(rules)).Msg("mute list loaded")
	return nil
}

// Refresh reloads rules that were never loaded or are older than the TTL.
func (l *MuteList) Refresh(ctx context.Context) error {
	l.mu.RLock()
	stale := !l.loaded || (l.opts.ttl > 0 && l.opts.now().Sub(l.loadedAt) >= l.opts.ttl)
	l.mu.RUnlock()
	if !stale {
		return nil
	}
	return l.Load(ctx)
}

// IsMuted reports whether event (and action, when the payload has one) from
// userID is muted. Users without a rule are never muted.
func (l *MuteList) IsMuted(userID int64, event string, action *string) bool {
	l.mu.RLock()
	defer l.mu.RUnlock()
	for _, rule := range l.rules {
		if rule.UserID == userID {
			return rule.mutes(event, action)
		}
	}
	return false
}

func (r MuteRule) mutes(event string, action *string) bool {
	switch r.Type {
	case MuteAll:
		return true
	case MuteInclude:
		for _, e := range r.Events {
			if e.EventName != event {
				continue
			}
			if e.Actions == nil || (action != nil && contains(e.Actions, *action)) {
				return true
			}
		}
		return false
	case MuteExclude:
		for _, e := range r.Events {
			if e.EventName != event || e.Actions == nil {
				continue
			}
			if action == nil || contains(e.Actions, *action) {
				return false
			}
		}
		return true
	default:
		return false
	}
}

// Replace sets userID's rule in memory, or removes it when rule is nil.
func (l *MuteList) Replace(userID int64, rule *MuteRule) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	if !l.loaded {
		return ErrNotLoaded
	}
	rules := make([]MuteRule, 0, len(l.rules)+1)
	replaced := false
	for _, existing := range l.rules {
		if existing.UserID != userID {
			rules = append(rules, existing)
			continue
		}
		if rule != nil && !replaced {
			next := *rule
			next.UserID = userID
			rules = append(rules, next)
			replaced = true
		}
	}
	if rule != nil && !replaced {
		next := *rule
		next.UserID = userID
		rules = append(rules, next)
	}
	l.rules = rules
	return nil
}

// Rules returns a snapshot of the in-memory rules.
func (l *MuteList) Rules() []MuteRule {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return append([]MuteRule(nil), l.rules...)
}

// Save writes the in-memory rules back to the backend.
func (l *MuteList) Save(ctx context.Context) error {
	l.mu.RLock()
	if !l.loaded {
		l.mu.RUnlock()
		return ErrNotLoaded
	}
	rules := append([]MuteRule(nil), l.rules...)
	l.mu.RUnlock()
	return l.backend.SaveMutes(ctx, rules)
}

func contains(values []string, value string) bool {
	for _, v := range values {
		if v == value {
			return true
		}
	}
	return false
}
