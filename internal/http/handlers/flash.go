package handlers

import (
	"errors"
	"net/http"

	"github.com/gorilla/securecookie"

	"github.com/diagnosis/reservations/internal/domain"
)

const flashCookie = "reservation_status"

// Flash carries a SubmissionStatus across the post/redirect/get round trip in
// a signed and encrypted cookie.
type Flash struct {
	sc *securecookie.SecureCookie
}

// NewFlash uses the given keys, or fresh random keys when hashKey is empty.
func NewFlash(hashKey, blockKey []byte) (*Flash, error) {
	if len(hashKey) == 0 {
		hashKey = securecookie.GenerateRandomKey(32)
		blockKey = securecookie.GenerateRandomKey(32)
		if hashKey == nil || blockKey == nil {
			return nil, errors.New("flash: could not generate cookie keys")
		}
	}
	sc := securecookie.New(hashKey, blockKey)
	sc.MaxAge(300)
	return &Flash{sc: sc}, nil
}

func (f *Flash) Set(w http.ResponseWriter, r *http.Request, status domain.SubmissionStatus) error {
	encoded, err := f.sc.Encode(flashCookie, map[string]string{
		"state":   string(status.State),
		"message": status.Message,
	})
	if err != nil {
		return err
	}
	http.SetCookie(w, &http.Cookie{
		Name:     flashCookie,
		Value:    encoded,
		Path:     "/",
		MaxAge:   300,
		HttpOnly: true,
		SameSite: http.SameSiteLaxMode,
		Secure:   r.TLS != nil,
	})
	return nil
}

// Pop returns the pending status, if any, and clears the cookie.
func (f *Flash) Pop(w http.ResponseWriter, r *http.Request) (domain.SubmissionStatus, bool) {
	c, err := r.Cookie(flashCookie)
	if err != nil {
		return domain.SubmissionStatus{}, false
	}
	http.SetCookie(w, &http.Cookie{
		Name: flashCookie, Value: "", Path: "/", MaxAge: -1,
		HttpOnly: true, SameSite: http.SameSiteLaxMode,
	})

	value := map[string]string{}
	if err := f.sc.Decode(flashCookie, c.Value, &value); err != nil {
		return domain.SubmissionStatus{}, false
	}
	if value["message"] == "" {
		return domain.SubmissionStatus{}, false
	}
	return domain.SubmissionStatus{State: domain.SubmissionState(value["state"]), Message: value["message"]}, true
}
