package services

import (
	"bytes"
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"gorm.io/gorm"

	"github.com/charlesng35/internhub/internal/models"
	"github.com/charlesng35/internhub/internal/storage"
	"github.com/charlesng35/internhub/pkg/crypto"
)

const twoQuestionTest = `[{"q":"What is OOP?","options":["Object Oriented Programming","Other"],"ans":0},` +
	`{"q":"Java keyword?","options":["class","banana"],"ans":0}]`

type fixedClock struct {
	mu  sync.Mutex
	now time.Time
}

func newFixedClock() *fixedClock {
	return &fixedClock{now: time.Date(2024, 3, 1, 9, 0, 0, 0, time.UTC)}
}

func (c *fixedClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *fixedClock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(d)
}

type capturedSMS struct {
	Mobile  string
	Message string
}

type captureSender struct {
	mu   sync.Mutex
	sent []capturedSMS
	err  error
}

func (s *captureSender) Send(_ context.Context, mobile, message string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.err != nil {
		return s.err
	}
	s.sent = append(s.sent, capturedSMS{Mobile: mobile, Message: message})
	return nil
}

func (s *captureSender) Last() capturedSMS {
	s.mu.Lock()
	defer s.mu.Unlock()
	if len(s.sent) == 0 {
		return capturedSMS{}
	}
	return s.sent[len(s.sent)-1]
}

func seedUser(t *testing.T, db *gorm.DB, username, role string) *models.User {
	t.Helper()
	hash, err := crypto.HashPassword("pw")
	require.NoError(t, err)
	user := &models.User{Username: username, PasswordHash: hash, Role: role}
	require.NoError(t, db.Create(user).Error)
	return user
}

func seedPosting(t *testing.T, postings *PostingService, companyID, definition string) *models.Internship {
	t.Helper()
	posting, err := postings.Create(context.Background(), companyID, CreatePostingInput{
		Title:          "Backend Intern",
		Description:    "Go services",
		TestDefinition: definition,
	})
	require.NoError(t, err)
	return posting
}

func newLocalFiles(t *testing.T) *storage.LocalStore {
	t.Helper()
	store, err := storage.NewLocalStore(t.TempDir())
	require.NoError(t, err)
	return store
}

func pdfUpload(name string) *ResumeUpload {
	body := []byte("%PDF-1.4 resume")
	return &ResumeUpload{
		Filename:    name,
		Size:        int64(len(body)),
		ContentType: "application/pdf",
		Content:     bytes.NewReader(body),
	}
}
