package stores

import (
	"bytes"
	"context"
	"encoding/binary"
	"errors"
	"fmt"
	"io"
	"time"

	"github.com/redis/go-redis/v9"
)

const (
	resetRecordVersionV1 = 1

	resetFlagVerified = 1 << 0
)

var (
	ErrResetNotFound         = errors.New("reset record not found")
	ErrResetRedisUnavailable = errors.New("reset redis unavailable")
	ErrResetRecordCorrupt    = errors.New("reset record corrupt")
)

// ResetRecord is the transient state of one password-recovery attempt.
// ExpiresAt and CreatedAt are unix milliseconds.
type ResetRecord struct {
	FlowID    string
	Email     string
	CodeHash  [32]byte
	ExpiresAt int64
	CreatedAt int64
	Verified  bool
}

// ResetStore persists at most one ResetRecord per key. Save overwrites any
// previous record under the same key.
type ResetStore interface {
	Save(ctx context.Context, key string, record *ResetRecord, ttl time.Duration) error
	Get(ctx context.Context, key string) (*ResetRecord, error)
	MarkVerified(ctx context.Context, key, flowID string) error
	Delete(ctx context.Context, key string) error
}

// RedisResetStore keeps reset records in Redis under prefix:key.
type RedisResetStore struct {
	redis  redis.UniversalClient
	prefix string
}

func NewRedisResetStore(redisClient redis.UniversalClient, prefix string) *RedisResetStore {
	if prefix == "" {
		prefix = "afr"
	}
	return &RedisResetStore{
		redis:  redisClient,
		prefix: prefix,
	}
}

func (s *RedisResetStore) key(key string) string {
	return s.prefix + ":" + key
}

func (s *RedisResetStore) Save(ctx context.Context, key string, record *ResetRecord, ttl time.Duration) error {
	encoded, err := encodeResetRecord(record)
	if err != nil {
		return err
	}

	if err := s.redis.Set(ctx, s.key(key), encoded, ttl).Err(); err != nil {
		return fmt.Errorf("%w: %v", ErrResetRedisUnavailable, err)
	}
	return nil
}

func (s *RedisResetStore) Get(ctx context.Context, key string) (*ResetRecord, error) {
	data, err := s.redis.Get(ctx, s.key(key)).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, ErrResetNotFound
		}
		return nil, fmt.Errorf("%w: %v", ErrResetRedisUnavailable, err)
	}
	return decodeResetRecord(data)
}

// MarkVerified sets the verified flag if the stored record still belongs to
// flowID. A record replaced by a newer flow is left alone and reported as
// ErrResetNotFound. The remaining TTL is preserved.
func (s *RedisResetStore) MarkVerified(ctx context.Context, key, flowID string) error {
	const maxRetries = 4
	k := s.key(key)

	for i := 0; i < maxRetries; i++ {
		err := s.redis.Watch(ctx, func(tx *redis.Tx) error {
			data, err := tx.Get(ctx, k).Bytes()
			if err != nil {
				return err
			}
			record, err := decodeResetRecord(data)
			if err != nil {
				return err
			}
			if record.FlowID != flowID {
				return ErrResetNotFound
			}
			if record.Verified {
				return nil
			}
			record.Verified = true

			updated, err := encodeResetRecord(record)
			if err != nil {
				return err
			}

			_, err = tx.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
				pipe.SetArgs(ctx, k, updated, redis.SetArgs{KeepTTL: true})
				return nil
			})
			return err
		}, k)

		if errors.Is(err, redis.TxFailedErr) {
			continue
		}
		if err != nil {
			switch {
			case errors.Is(err, redis.Nil):
				return ErrResetNotFound
			case errors.Is(err, ErrResetNotFound), errors.Is(err, ErrResetRecordCorrupt):
				return err
			default:
				return fmt.Errorf("%w: %v", ErrResetRedisUnavailable, err)
			}
		}
		return nil
	}

	return fmt.Errorf("%w: verify flag contention", ErrResetRedisUnavailable)
}

func (s *RedisResetStore) Delete(ctx context.Context, key string) error {
	if err := s.redis.Del(ctx, s.key(key)).Err(); err != nil {
		return fmt.Errorf("%w: %v", ErrResetRedisUnavailable, err)
	}
	return nil
}

func encodeResetRecord(record *ResetRecord) ([]byte, error) {
	if record == nil {
		return nil, errors.New("nil reset record")
	}
	if len(record.FlowID) > 255 {
		return nil, errors.New("reset flow id too long")
	}
	if len(record.Email) > 65535 {
		return nil, errors.New("reset email too long")
	}

	var buf bytes.Buffer

	buf.WriteByte(resetRecordVersionV1)

	var flags byte
	if record.Verified {
		flags |= resetFlagVerified
	}
	buf.WriteByte(flags)

	if err := binary.Write(&buf, binary.BigEndian, record.ExpiresAt); err != nil {
		return nil, err
	}
	if err := binary.Write(&buf, binary.BigEndian, record.CreatedAt); err != nil {
		return nil, err
	}

	buf.WriteByte(byte(len(record.FlowID)))
	buf.WriteString(record.FlowID)

	if err := binary.Write(&buf, binary.BigEndian, uint16(len(record.Email))); err != nil {
		return nil, err
	}
	buf.WriteString(record.Email)
	buf.Write(record.CodeHash[:])

	return buf.Bytes(), nil
}

func decodeResetRecord(data []byte) (*ResetRecord, error) {
	reader := bytes.NewReader(data)

	version, err := reader.ReadByte()
	if err != nil {
		return nil, ErrResetRecordCorrupt
	}
	if version != resetRecordVersionV1 {
		return nil, fmt.Errorf("%w: version %d", ErrResetRecordCorrupt, version)
	}

	flags, err := reader.ReadByte()
	if err != nil {
		return nil, ErrResetRecordCorrupt
	}

	record := &ResetRecord{Verified: flags&resetFlagVerified != 0}

	if err := binary.Read(reader, binary.BigEndian, &record.ExpiresAt); err != nil {
		return nil, ErrResetRecordCorrupt
	}
	if err := binary.Read(reader, binary.BigEndian, &record.CreatedAt); err != nil {
		return nil, ErrResetRecordCorrupt
	}

	flowLen, err := reader.ReadByte()
	if err != nil {
		return nil, ErrResetRecordCorrupt
	}
	flowID := make([]byte, flowLen)
	if _, err := io.ReadFull(reader, flowID); err != nil {
		return nil, ErrResetRecordCorrupt
	}
	record.FlowID = string(flowID)

	var emailLen uint16
	if err := binary.Read(reader, binary.BigEndian, &emailLen); err != nil {
		return nil, ErrResetRecordCorrupt
	}
	email := make([]byte, emailLen)
	if _, err := io.ReadFull(reader, email); err != nil {
		return nil, ErrResetRecordCorrupt
	}
	record.Email = string(email)

	if _, err := io.ReadFull(reader, record.CodeHash[:]); err != nil {
		return nil, ErrResetRecordCorrupt
	}

	return record, nil
}
