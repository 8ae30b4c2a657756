package dedupstore

import (
	"database/sql"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"
)

// Slot is one of the four fixed local-time delivery windows.
type Slot string

const (
	Morning Slot = "morning"
	Noon    Slot = "noon"
	Evening Slot = "evening"
	Night   Slot = "night"
)

// Slots lists every slot together with its local clock time, in send
// order across a day.
var Slots = []struct {
	Slot Slot
	Hour int
}{
	{Morning, 8},
	{Noon, 13},
	{Evening, 19},
	{Night, 23},
}

// Subscriber is a chat registered to receive scheduled digests.
type Subscriber struct {
	ChatID               string
	Timezone             string
	Active               bool
	CreatedAt            time.Time
	LastSlotSent         map[Slot]time.Time // zero value means never sent

	// Per-category opt-in flags, supplemented from the original Python
	// implementation's subscriptions schema (SPEC_FULL.md §3).
	CryptoAlerts  bool
	MarketUpdates bool
	WeatherInfo   bool
	WorldNews     bool
	TechNews      bool
}

func (s *Store) slotColumn(slot Slot) string {
	return "last_slot_sent_" + map[Slot]string{
		Morning: "morning",
		Noon:    "noon",
		Evening: "evening",
		Night:   "night",
	}[slot]
}

// Subscribe registers a new chat, or reactivates an existing one.
func (s *Store) Subscribe(chatID, timezone string) error {
	_, err := s.db.Exec(`
		INSERT INTO subscribers (chat_id, timezone, active)
		VALUES ($1, $2, TRUE)
		ON CONFLICT (chat_id) DO UPDATE SET active = TRUE, timezone = $2
	`, chatID, timezone)
	if err != nil {
		return fmt.Errorf("subscribe: %w", err)
	}
	return nil
}

// Unsubscribe marks a chat inactive without deleting its history, used
// both for user-initiated opt-out and for TransportPermanent handling
// (spec.md §7).
func (s *Store) Unsubscribe(chatID string) error {
	_, err := s.db.Exec(`UPDATE subscribers SET active = FALSE WHERE chat_id = $1`, chatID)
	if err != nil {
		return fmt.Errorf("unsubscribe: %w", err)
	}
	return nil
}

// SetTimezone updates a subscriber's IANA timezone.
func (s *Store) SetTimezone(chatID, timezone string) error {
	_, err := s.db.Exec(`UPDATE subscribers SET timezone = $1 WHERE chat_id = $2`, timezone, chatID)
	if err != nil {
		return fmt.Errorf("set_timezone: %w", err)
	}
	return nil
}

// Get returns one subscriber.
// Get returns chatID's subscriber row, or (nil, nil) if chatID has
// never subscribed — callers (e.g. OnDemand) treat a missing row as
// "use defaults", not an error.
func (s *Store) Get(chatID string) (*Subscriber, error) {
	row := s.db.QueryRow(`
		SELECT chat_id, timezone, active, created_at,
		       last_slot_sent_morning, last_slot_sent_noon, last_slot_sent_evening, last_slot_sent_night,
		       crypto_alerts, market_updates, weather_info, world_news, tech_news
		FROM subscribers WHERE chat_id = $1
	`, chatID)
	sub, err := scanSubscriber(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	return sub, err
}

// ActiveSubscribers returns every active subscriber, used by the
// Scheduler's per-tick slot-match scan.
func (s *Store) ActiveSubscribers() ([]Subscriber, error) {
	rows, err := s.db.Query(`
		SELECT chat_id, timezone, active, created_at,
		       last_slot_sent_morning, last_slot_sent_noon, last_slot_sent_evening, last_slot_sent_night,
		       crypto_alerts, market_updates, weather_info, world_news, tech_news
		FROM subscribers WHERE active = TRUE
	`)
	if err != nil {
		return nil, fmt.Errorf("active_subscribers: %w", err)
	}
	defer rows.Close()

	var out []Subscriber
	for rows.Next() {
		sub, err := scanSubscriberRows(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, *sub)
	}
	return out, rows.Err()
}

// MarkSlotSent records that slot was successfully delivered on date
// (subscriber-local date) for chatID. The Scheduler, not the Assembler,
// owns this write (spec.md §2, §4.5).
func (s *Store) MarkSlotSent(chatID string, slot Slot, date time.Time) error {
	col := s.slotColumn(slot)
	_, err := s.db.Exec(fmt.Sprintf(`UPDATE subscribers SET %s = $1 WHERE chat_id = $2`, col), date, chatID)
	if err != nil {
		return fmt.Errorf("mark_slot_sent: %w", err)
	}
	return nil
}

type rowScanner interface {
	Scan(dest ...interface{}) error
}

func scanSubscriber(row *sql.Row) (*Subscriber, error) {
	return scanSubscriberRows(row)
}

func scanSubscriberRows(row rowScanner) (*Subscriber, error) {
	var sub Subscriber
	var morning, noon, evening, night sql.NullTime

	err := row.Scan(
		&sub.ChatID, &sub.Timezone, &sub.Active, &sub.CreatedAt,
		&morning, &noon, &evening, &night,
		&sub.CryptoAlerts, &sub.MarketUpdates, &sub.WeatherInfo, &sub.WorldNews, &sub.TechNews,
	)
	if err != nil {
		return nil, fmt.Errorf("scan subscriber: %w", err)
	}

	sub.LastSlotSent = map[Slot]time.Time{}
	if morning.Valid {
		sub.LastSlotSent[Morning] = morning.Time
	}
	if noon.Valid {
		sub.LastSlotSent[Noon] = noon.Time
	}
	if evening.Valid {
		sub.LastSlotSent[Evening] = evening.Time
	}
	if night.Valid {
		sub.LastSlotSent[Night] = night.Time
	}
	return &sub, nil
}

// commonTimezoneNames resolves a handful of plain-language city/region
// names to IANA zones, mirroring the original's parse_timezone_input
// city dictionary (choynews/utils/time_utils.py).
var commonTimezoneNames = map[string]string{
	"dhaka":     "Asia/Dhaka",
	"london":    "Europe/London",
	"new york":  "America/New_York",
	"tokyo":     "Asia/Tokyo",
	"singapore": "Asia/Singapore",
	"sydney":    "Australia/Sydney",
	"dubai":     "Asia/Dubai",
	"delhi":     "Asia/Kolkata",
	"kolkata":   "Asia/Kolkata",
	"paris":     "Europe/Paris",
	"berlin":    "Europe/Berlin",
	"toronto":   "America/Toronto",
	"lagos":     "Africa/Lagos",
}

// ParseTimezoneInput resolves a free-text timezone command argument: an
// exact IANA name, a whole-hour UTC offset like "+6" or "UTC-5", or a
// common city name. Supplemented from the original's parse_timezone_input
// (SPEC_FULL.md §3); command parsing itself is out of scope, but this
// pure resolver is the piece a /settimezone command handler would call.
func ParseTimezoneInput(input string) (string, error) {
	trimmed := strings.TrimSpace(input)
	if trimmed == "" {
		return "", fmt.Errorf("empty timezone input")
	}

	if _, err := time.LoadLocation(trimmed); err == nil {
		return trimmed, nil
	}

	if iana, ok := commonTimezoneNames[strings.ToLower(trimmed)]; ok {
		return iana, nil
	}

	if offset, ok := parseUTCOffset(trimmed); ok {
		if _, err := time.LoadLocation(offset); err == nil {
			return offset, nil
		}
	}

	return "", fmt.Errorf("unrecognized timezone: %q", input)
}

// parseUTCOffset turns "+6", "-5", "UTC+6" into an "Etc/GMT" zone name
// loadable via time.LoadLocation. The tzdata Etc/GMT zones only cover
// whole-hour offsets and use the POSIX-inverted sign (Etc/GMT-6 is
// UTC+6), so a fractional offset like "+5:30" is rejected rather than
// silently rounded.
func parseUTCOffset(s string) (string, bool) {
	s = strings.TrimPrefix(strings.ToUpper(s), "UTC")
	if s == "" {
		return "", false
	}
	sign := 1
	switch s[0] {
	case '+':
		s = s[1:]
	case '-':
		sign = -1
		s = s[1:]
	default:
		return "", false
	}
	if strings.ContainsAny(s, ":.") {
		return "", false
	}

	h, err := strconv.Atoi(s)
	if err != nil || h < 0 || h > 14 {
		return "", false
	}

	if sign > 0 {
		return fmt.Sprintf("Etc/GMT-%d", h), true
	}
	return fmt.Sprintf("Etc/GMT+%d", h), true
}
