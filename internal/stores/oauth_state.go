package stores

import (
	"bytes"
	"context"
	"encoding/binary"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

// oauthStateRecordVersion1 is a version byte followed by the big-endian
// unix expiry.
const oauthStateRecordVersion1 = 1

var (
	ErrOAuthStateNotFound = errors.New("oauth state not found")
	ErrOAuthStateExpired  = errors.New("oauth state expired")
	ErrOAuthStateBackend  = errors.New("oauth state backend unavailable")
)

// OAuthState is the record bound to one authorization redirect.
type OAuthState struct {
	ExpiresAt int64
}

// OAuthStateStore keeps single-use CSRF state values for the provider redirect.
type OAuthStateStore struct {
	redis  redis.UniversalClient
	prefix string
	now    func() time.Time
}

// NewOAuthStateStore keys states under prefix, "oauth:state" when empty.
func NewOAuthStateStore(redisClient redis.UniversalClient, prefix string) *OAuthStateStore {
	if prefix == "" {
		prefix = "oauth:state"
	}
	return &OAuthStateStore{
		redis:  redisClient,
		prefix: prefix,
		now:    time.Now,
	}
}

func (s *OAuthStateStore) key(state string) string {
	return s.prefix + ":" + state
}

// Save stores record under state for ttl, stamping ExpiresAt when unset.
func (s *OAuthStateStore) Save(ctx context.Context, state string, record *OAuthState, ttl time.Duration) error {
	if record.ExpiresAt == 0 {
		record.ExpiresAt = s.now().Add(ttl).Unix()
	}
	encoded, err := encodeOAuthState(record)
	if err != nil {
		return err
	}
	if err := s.redis.Set(ctx, s.key(state), encoded, ttl).Err(); err != nil {
		return fmt.Errorf("%w: %v", ErrOAuthStateBackend, err)
	}
	return nil
}

// Consume removes state and returns its record. A state can be consumed once.
func (s *OAuthStateStore) Consume(ctx context.Context, state string) (*OAuthState, error) {
	if state == "" {
		return nil, ErrOAuthStateNotFound
	}
	data, err := s.redis.GetDel(ctx, s.key(state)).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, ErrOAuthStateNotFound
		}
		return nil, fmt.Errorf("%w: %v", ErrOAuthStateBackend, err)
	}

	record, err := decodeOAuthState(data)
	if err != nil {
		return nil, err
	}
	if s.now().Unix() > record.ExpiresAt {
		return nil, ErrOAuthStateExpired
	}
	return record, nil
}

func encodeOAuthState(record *OAuthState) ([]byte, error) {
	var buf bytes.Buffer
	buf.WriteByte(oauthStateRecordVersion1)

	if err := binary.Write(&buf, binary.BigEndian, record.ExpiresAt); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

func decodeOAuthState(data []byte) (*OAuthState, error) {
	reader := bytes.NewReader(data)

	version, err := reader.ReadByte()
	if err != nil {
		return nil, err
	}
	if version != oauthStateRecordVersion1 {
		return nil, errors.New("invalid oauth state version")
	}

	record := &OAuthState{}
	if err := binary.Read(reader, binary.BigEndian, &record.ExpiresAt); err != nil {
		return nil, err
	}
	if reader.Len() != 0 {
		return nil, errors.New("oauth state record has trailing bytes")
	}
	return record, nil
}
