package pipeline

import (
	"bytes"
	"encoding/json"
	"fmt"
	"sort"
	"strconv"
	"strings"
	"unicode/utf8"

	"zapihook/tools"

	jsoniter "github.com/json-iterator/go"
)

const EVENT_RECEIVED = "received"

const logPreviewRunes = 200
const payloadPreviewBytes = 10_000

var payloadJSON = jsoniter.Config{
	EscapeHTML: true,
	UseNumber:  true,
}.Froze()

var (
	phoneKeys       = []string{"phone", "from", "participant", "sender", "chatid", "chat_id", "number", "remotejid"}
	textKeys        = []string{"text", "message", "body", "content", "caption", "conversation"}
	contentKeys     = []string{"text", "image", "video", "audio", "document", "sticker", "contact", "location"}
	messageTypeKeys = []string{"messagetype", "typemessage", "type"}
	nameKeys        = []string{"sendername", "chatname", "pushname", "notifyname", "name"}
	photoKeys       = []string{"senderphoto", "photo", "profilepicurl", "imgurl"}
	fromMeKeys      = []string{"fromme", "from_me"}
	instanceKeys    = []string{"instanceid", "instance_id"}
	messageIDKeys   = []string{"messageid", "message_id", "id"}
)

// MessageEvent é a mensagem recebida já normalizada. Imutável depois de construída.
type MessageEvent struct {
	Event         string
	Phone         string
	PhoneE164     string
	ContactName   string
	ContactPhoto  string
	MessageType   string
	MessageText   string
	FromMe        bool
	InstanceID    string
	MessageID     string
	CorrelationID string
	Raw           []byte
}

// LogPreview is a short, phone-masked summary for logs.
func (e MessageEvent) LogPreview() string {
	s := fmt.Sprintf("phone=%s type=%s fromMe=%t text=%q",
		tools.MaskPhone(e.Phone), e.MessageType, e.FromMe, e.MessageText)
	return truncateRunes(s, logPreviewRunes)
}

// ParseResult is either Ok or Malformed.
type ParseResult interface {
	isParseResult()
}

type Ok struct {
	Event MessageEvent
}

type Malformed struct {
	Reason string
}

func (Ok) isParseResult()        {}
func (Malformed) isParseResult() {}

// Normalize extracts a MessageEvent from a Z-API webhook body. The payload
// shape varies between Z-API versions, so fields are searched breadth-first
// and, at each object, by key priority. An empty body is a valid empty event.
func Normalize(raw []byte, correlationID string) ParseResult {
	ev := MessageEvent{Event: EVENT_RECEIVED, CorrelationID: correlationID, Raw: raw}

	if len(bytes.TrimSpace(raw)) == 0 {
		return Ok{Event: ev}
	}

	var doc any
	if err := payloadJSON.Unmarshal(raw, &doc); err != nil {
		return Malformed{Reason: "invalid json: " + err.Error()}
	}
	switch doc.(type) {
	case map[string]any, []any:
	default:
		return Malformed{Reason: "payload is not a JSON object"}
	}

	ev.Phone = findPhone(doc)
	ev.PhoneE164 = tools.NormalizePhoneE164BR(ev.Phone)
	ev.MessageText = findString(doc, textKeys)
	ev.MessageType = findMessageType(doc)
	ev.ContactName = findString(doc, nameKeys)
	ev.ContactPhoto = findString(doc, photoKeys)
	ev.FromMe = findFromMe(doc)
	ev.InstanceID = findInstanceID(doc)
	ev.MessageID = findTopLevel(doc, messageIDKeys)

	return Ok{Event: ev}
}

// PayloadPreview corta o corpo bruto para caber num log.
func PayloadPreview(raw []byte) string {
	if len(raw) <= payloadPreviewBytes {
		return string(raw)
	}
	cut := raw[:payloadPreviewBytes]
	for len(cut) > 0 && !utf8.Valid(cut) {
		cut = cut[:len(cut)-1]
	}
	return string(cut) + "...<truncated>"
}

// walk visits objects breadth-first; visit returns true to stop.
func walk(doc any, visit func(obj map[string]any) bool) {
	queue := []any{doc}
	for len(queue) > 0 {
		current := queue[0]
		queue = queue[1:]

		switch v := current.(type) {
		case []any:
			queue = append(queue, v...)
		case map[string]any:
			if visit(v) {
				return
			}
			for _, k := range sortedKeys(v) {
				switch child := v[k].(type) {
				case map[string]any, []any:
					queue = append(queue, child)
				}
			}
		}
	}
}

// lookup returns the values of obj whose lowercased key equals one of keys,
// in keys order.
func lookup(obj map[string]any, keys []string) []any {
	lowered := lowerKeys(obj)
	var out []any
	for _, k := range keys {
		if v, ok := lowered[k]; ok {
			out = append(out, v)
		}
	}
	return out
}

func lowerKeys(obj map[string]any) map[string]any {
	lowered := make(map[string]any, len(obj))
	for _, k := range sortedKeys(obj) {
		lk := strings.ToLower(k)
		if _, ok := lowered[lk]; !ok {
			lowered[lk] = obj[k]
		}
	}
	return lowered
}

func findFirst(doc any, keys []string, accept func(v any) (string, bool)) string {
	found := ""
	walk(doc, func(obj map[string]any) bool {
		for _, v := range lookup(obj, keys) {
			if s, ok := accept(v); ok {
				found = s
				return true
			}
		}
		return false
	})
	return found
}

func findString(doc any, keys []string) string {
	return findFirst(doc, keys, func(v any) (string, bool) {
		s, ok := v.(string)
		s = strings.TrimSpace(s)
		return s, ok && s != ""
	})
}

func findPhone(doc any) string {
	return findFirst(doc, phoneKeys, func(v any) (string, bool) {
		s, ok := scalarString(v)
		if !ok {
			return "", false
		}
		// remove o sufixo do JID ("5546...@s.whatsapp.net")
		s, _, _ = strings.Cut(s, "@")
		phone := tools.NormalizePhone(s)
		return phone, phone != ""
	})
}

func findMessageType(doc any) string {
	found := ""
	walk(doc, func(obj map[string]any) bool {
		lowered := lowerKeys(obj)
		for _, k := range contentKeys {
			if _, ok := lowered[k].(map[string]any); ok {
				found = k
				return true
			}
		}
		return false
	})
	if found != "" {
		return found
	}
	return findFirst(doc, messageTypeKeys, func(v any) (string, bool) {
		s, ok := scalarString(v)
		return s, ok && s != ""
	})
}

func findFromMe(doc any) bool {
	value := findFirst(doc, fromMeKeys, func(v any) (string, bool) {
		switch b := v.(type) {
		case bool:
			return strconv.FormatBool(b), true
		case string:
			s := strings.ToLower(strings.TrimSpace(b))
			return s, s != ""
		}
		return "", false
	})
	return value == "true" || value == "1"
}

func findInstanceID(doc any) string {
	direct := findFirst(doc, instanceKeys, func(v any) (string, bool) {
		s, ok := scalarString(v)
		return s, ok && s != ""
	})
	if direct != "" {
		return direct
	}
	if obj, ok := doc.(map[string]any); ok {
		for _, v := range lookup(obj, []string{"instance"}) {
			if inst, ok := v.(map[string]any); ok {
				return findTopLevel(inst, []string{"id"})
			}
		}
	}
	return ""
}

func findTopLevel(doc any, keys []string) string {
	obj, ok := doc.(map[string]any)
	if !ok {
		return ""
	}
	for _, v := range lookup(obj, keys) {
		if s, ok := scalarString(v); ok && s != "" {
			return s
		}
	}
	return ""
}

func scalarString(v any) (string, bool) {
	switch s := v.(type) {
	case string:
		return strings.TrimSpace(s), true
	case json.Number:
		return s.String(), true
	case float64:
		return strconv.FormatFloat(s, 'f', -1, 64), true
	}
	return "", false
}

func sortedKeys(m map[string]any) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

func truncateRunes(s string, n int) string {
	if utf8.RuneCountInString(s) <= n {
		return s
	}
	r := []rune(s)
	return string(r[:n]) + "…"
}
