// Package flash queues one-shot user messages in a cookie between an action
// and the next page render.
package flash

import (
	"encoding/base64"
	"encoding/json"
	"net/http"

	"github.com/gin-gonic/gin"
)

// CookieName is the cookie carrying the pending flash messages.
const CookieName = "internhub_flash"

// Categories accepted by the page renderer.
const (
	Success = "success"
	Info    = "info"
	Warning = "warning"
	Danger  = "danger"
)

// Message is a single flash entry.
type Message struct {
	Category string `json:"category"`
	Message  string `json:"message"`
}

// Options controls cookie attributes.
type Options struct {
	Secure bool
}

var defaultOptions Options

// Configure sets the cookie attributes used by Add and Consume.
func Configure(opts Options) {
	defaultOptions = opts
}

// Add appends a message to the flash cookie of the response.
func Add(c *gin.Context, category, message string) {
	queued := append(pending(c), Message{Category: category, Message: message})
	c.Set(contextKey, queued)
	write(c, queued)
}

// Consume returns queued messages and clears the cookie.
func Consume(c *gin.Context) []Message {
	messages := pending(c)
	c.Set(contextKey, []Message(nil))
	if _, err := c.Cookie(CookieName); err == nil || len(messages) > 0 {
		setCookie(c, "", -1)
	}
	return messages
}

const contextKey = "flash.messages"

// pending prefers messages queued during this request over the request cookie.
func pending(c *gin.Context) []Message {
	if v, ok := c.Get(contextKey); ok {
		if messages, ok := v.([]Message); ok {
			return messages
		}
	}

	raw, err := c.Cookie(CookieName)
	if err != nil || raw == "" {
		return nil
	}
	return Decode(raw)
}

func write(c *gin.Context, messages []Message) {
	encoded, err := Encode(messages)
	if err != nil {
		return
	}
	setCookie(c, encoded, 0)
}

func setCookie(c *gin.Context, value string, maxAge int) {
	c.SetSameSite(http.SameSiteLaxMode)
	c.SetCookie(CookieName, value, maxAge, "/", "", defaultOptions.Secure, true)
}

// Encode serialises messages into a cookie-safe value.
func Encode(messages []Message) (string, error) {
	data, err := json.Marshal(messages)
	if err != nil {
		return "", err
	}
	return base64.RawURLEncoding.EncodeToString(data), nil
}

// Decode parses a cookie value, ignoring malformed input.
func Decode(raw string) []Message {
	data, err := base64.RawURLEncoding.DecodeString(raw)
	if err != nil {
		return nil
	}
	var messages []Message
	if err := json.Unmarshal(data, &messages); err != nil {
		return nil
	}
	return messages
}
