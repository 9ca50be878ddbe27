package reconcile

import (
	"encoding/json"
	"strconv"
	"strings"

	"github.com/templui/evidencekit/internal/model"
)

// SlotKey identifies one attachment point. A Numbered key is a month and tags
// uploaded files with it; a Named key carries no month.
type SlotKey struct {
	name     string
	month    int
	numbered bool
}

func Numbered(month int) SlotKey {
	return SlotKey{month: month, numbered: true}
}

func Named(key string) SlotKey {
	return SlotKey{name: key}
}

// ParseSlotKey turns a key received as text into a SlotKey. Integers become
// Numbered keys, anything else a Named key.
func ParseSlotKey(s string) SlotKey {
	if n, err := strconv.Atoi(strings.TrimSpace(s)); err == nil {
		return Numbered(n)
	}
	return Named(s)
}

// Month returns the month tag of a Numbered key
func (k SlotKey) Month() (int, bool) {
	return k.month, k.numbered
}

func (k SlotKey) String() string {
	if k.numbered {
		return strconv.Itoa(k.month)
	}
	return k.name
}

func (k SlotKey) MarshalJSON() ([]byte, error) {
	if k.numbered {
		return json.Marshal(k.month)
	}
	return json.Marshal(k.name)
}

func (k *SlotKey) UnmarshalJSON(b []byte) error {
	var n int
	if err := json.Unmarshal(b, &n); err == nil {
		*k = Numbered(n)
		return nil
	}
	var s string
	if err := json.Unmarshal(b, &s); err != nil {
		return err
	}
	*k = Named(s)
	return nil
}

// CategoryFor returns the explicit slot category, else infers one from the key
func CategoryFor(key SlotKey, explicit model.Category) model.Category {
	if explicit != "" {
		return explicit
	}
	if key.numbered {
		return model.CategoryUsageEvidence
	}
	switch {
	case strings.Contains(key.name, "msds"):
		return model.CategoryMSDS
	case strings.Contains(key.name, "usage"):
		return model.CategoryUsageEvidence
	default:
		return model.CategoryOther
	}
}
