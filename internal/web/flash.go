package web

import (
	"net/http"

	"github.com/gorilla/securecookie"
)

const (
	flashCookie = "lockbox_flash"
	maxFlashes  = 5
	flashMaxAge = 600 // seconds
)

// flasher stores one-shot messages in a signed, timestamped cookie.
// Cookies older than flashMaxAge or signed with another secret are ignored.
type flasher struct {
	codec *securecookie.SecureCookie
}

func newFlasher(secret []byte) flasher {
	codec := securecookie.New(append([]byte(nil), secret...), nil)
	codec.SetSerializer(securecookie.JSONEncoder{})
	codec.MaxAge(flashMaxAge)
	return flasher{codec: codec}
}

func (f flasher) encode(msgs []string) (string, error) {
	return f.codec.Encode(flashCookie, msgs)
}

func (f flasher) decode(value string) []string {
	var msgs []string
	if err := f.codec.Decode(flashCookie, value, &msgs); err != nil {
		return nil
	}
	return msgs
}

// Add appends msg to the flash messages carried by r
func (f flasher) Add(w http.ResponseWriter, r *http.Request, msg string) error {
	msgs := append(f.peek(r), msg)
	if len(msgs) > maxFlashes {
		msgs = msgs[len(msgs)-maxFlashes:]
	}

	value, err := f.encode(msgs)
	if err != nil {
		return err
	}
	http.SetCookie(w, &http.Cookie{
		Name:     flashCookie,
		Value:    value,
		Path:     "/",
		MaxAge:   flashMaxAge,
		HttpOnly: true,
		SameSite: http.SameSiteLaxMode,
	})
	return nil
}

// Pop returns the pending messages and clears them
func (f flasher) Pop(w http.ResponseWriter, r *http.Request) []string {
	msgs := f.peek(r)
	if _, err := r.Cookie(flashCookie); err == nil {
		http.SetCookie(w, &http.Cookie{
			Name:     flashCookie,
			Value:    "",
			Path:     "/",
			MaxAge:   -1,
			HttpOnly: true,
			SameSite: http.SameSiteLaxMode,
		})
	}
	return msgs
}

func (f flasher) peek(r *http.Request) []string {
	c, err := r.Cookie(flashCookie)
	if err != nil {
		return nil
	}
	return f.decode(c.Value)
}
