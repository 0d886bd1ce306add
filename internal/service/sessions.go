package service

import (
	"context"
	"crypto/rand"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"net/url"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"github.com/sirupsen/logrus"
	"golang.org/x/crypto/bcrypt"

	"github.com/timmyl2410/PlatelyAI-sub000/internal/logger"
)

const (
	maxSessionImages    = 20
	sessionKeyPrefix    = "session:"
	sessionTokenBytes   = 24
	maxSessionTxRetries = 3
)

// SessionImage is one photo handed off from the phone
type SessionImage struct {
	URL        string    `json:"url"`
	UploadedAt time.Time `json:"uploadedAt"`
}

// Session is the transient bag that carries photos from a phone to the desktop browser
type Session struct {
	ID        string         `json:"id"`
	OwnerUID  string         `json:"ownerUid"`
	TokenHash string         `json:"tokenHash,omitempty"`
	CreatedAt time.Time      `json:"createdAt"`
	ExpiresAt time.Time      `json:"expiresAt"`
	Images    []SessionImage `json:"images"`
}

// public returns a copy without the token hash
func (s *Session) public() *Session {
	out := *s
	out.TokenHash = ""
	if out.Images == nil {
		out.Images = []SessionImage{}
	}
	return &out
}

// CreatedSession is returned once, on creation, with the plaintext upload token
type CreatedSession struct {
	*Session
	UploadToken string `json:"uploadToken"`
}

// SessionService manages QR hand-off sessions
type SessionService struct {
	store      SessionStore
	ttl        time.Duration
	bcryptCost int
	now        func() time.Time
	log        *logrus.Entry
}

// NewSessionService creates a new SessionService instance
func NewSessionService(store SessionStore, ttl time.Duration) *SessionService {
	return &SessionService{
		store:      store,
		ttl:        ttl,
		bcryptCost: bcrypt.DefaultCost,
		now:        time.Now,
		log:        logger.Component("sessions"),
	}
}

// Create opens a session owned by uid. The upload token is only ever returned here.
func (s *SessionService) Create(ctx context.Context, uid string) (*CreatedSession, error) {
	raw := make([]byte, sessionTokenBytes)
	if _, err := rand.Read(raw); err != nil {
		return nil, fmt.Errorf("failed to generate session token: %w", err)
	}
	token := base64.RawURLEncoding.EncodeToString(raw)

	hash, err := bcrypt.GenerateFromPassword([]byte(token), s.bcryptCost)
	if err != nil {
		return nil, fmt.Errorf("failed to hash session token: %w", err)
	}

	now := s.now().UTC()
	session := &Session{
		ID:        uuid.NewString(),
		OwnerUID:  uid,
		TokenHash: string(hash),
		CreatedAt: now,
		ExpiresAt: now.Add(s.ttl),
		Images:    []SessionImage{},
	}
	if err := s.store.Create(ctx, session, s.ttl); err != nil {
		return nil, err
	}

	s.log.WithFields(logrus.Fields{"uid": uid, "session_id": session.ID}).Info("session created")
	return &CreatedSession{Session: session.public(), UploadToken: token}, nil
}

// AddImage appends a photo to the session after checking the upload token
func (s *SessionService) AddImage(ctx context.Context, id, token, imageURL string) (*Session, error) {
	u, err := url.Parse(imageURL)
	if err != nil || (u.Scheme != "https" && u.Scheme != "http") || u.Host == "" {
		return nil, validationError("invalid image URL")
	}
	if token == "" {
		return nil, fmt.Errorf("missing session token: %w", ErrUnauthorized)
	}

	updated, err := s.store.Update(ctx, id, func(sess *Session) error {
		if bcrypt.CompareHashAndPassword([]byte(sess.TokenHash), []byte(token)) != nil {
			return fmt.Errorf("invalid session token: %w", ErrUnauthorized)
		}
		if len(sess.Images) >= maxSessionImages {
			return validationError("a session holds at most %d images", maxSessionImages)
		}
		sess.Images = append(sess.Images, SessionImage{URL: imageURL, UploadedAt: s.now().UTC()})
		return nil
	})
	if err != nil {
		return nil, err
	}
	return updated.public(), nil
}

// Get returns a session owned by uid
func (s *SessionService) Get(ctx context.Context, uid, id string) (*Session, error) {
	sess, err := s.store.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	if sess.OwnerUID != uid {
		return nil, fmt.Errorf("session %s belongs to another user: %w", id, ErrForbidden)
	}
	return sess.public(), nil
}

// RedisSessionStore keeps sessions as JSON blobs that expire with their TTL
type RedisSessionStore struct {
	redis *redis.Client
}

// NewRedisSessionStore creates a new RedisSessionStore instance
func NewRedisSessionStore(client *redis.Client) *RedisSessionStore {
	return &RedisSessionStore{redis: client}
}

func sessionKey(id string) string {
	return sessionKeyPrefix + id
}

// Create stores a new session; ids never collide in practice so an existing key is an error
func (r *RedisSessionStore) Create(ctx context.Context, session *Session, ttl time.Duration) error {
	data, err := json.Marshal(session)
	if err != nil {
		return fmt.Errorf("failed to marshal session: %w", err)
	}
	ok, err := r.redis.SetNX(ctx, sessionKey(session.ID), data, ttl).Result()
	if err != nil {
		return fmt.Errorf("failed to save session: %w", err)
	}
	if !ok {
		return fmt.Errorf("session %s already exists", session.ID)
	}
	return nil
}

// Get loads a session by id
func (r *RedisSessionStore) Get(ctx context.Context, id string) (*Session, error) {
	data, err := r.redis.Get(ctx, sessionKey(id)).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, fmt.Errorf("session %s: %w", id, ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to load session: %w", err)
	}
	var session Session
	if err := json.Unmarshal(data, &session); err != nil {
		return nil, fmt.Errorf("failed to decode session: %w", err)
	}
	return &session, nil
}

// Update applies fn under WATCH so concurrent uploads never drop an image.
// The key keeps its remaining TTL.
func (r *RedisSessionStore) Update(ctx context.Context, id string, fn func(*Session) error) (*Session, error) {
	key := sessionKey(id)
	var result *Session

	txf := func(tx *redis.Tx) error {
		data, err := tx.Get(ctx, key).Bytes()
		if errors.Is(err, redis.Nil) {
			return fmt.Errorf("session %s: %w", id, ErrNotFound)
		}
		if err != nil {
			return err
		}

		var session Session
		if err := json.Unmarshal(data, &session); err != nil {
			return fmt.Errorf("failed to decode session: %w", err)
		}
		if err := fn(&session); err != nil {
			return err
		}

		updated, err := json.Marshal(&session)
		if err != nil {
			return err
		}
		_, err = tx.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
			pipe.Set(ctx, key, updated, redis.KeepTTL)
			return nil
		})
		if err == nil {
			result = &session
		}
		return err
	}

	for i := 0; i < maxSessionTxRetries; i++ {
		err := r.redis.Watch(ctx, txf, key)
		if errors.Is(err, redis.TxFailedErr) {
			continue
		}
		if err != nil {
			return nil, err
		}
		return result, nil
	}
	return nil, fmt.Errorf("session %s: too much contention", id)
}
