package counter

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"

	"github.com/redis/go-redis/v9"
)

// RedisStore implements Store on Redis, using SETBIT/DECR composed into
// transactions so concurrent workers cannot lose updates between "check
// if already done" and "mark done".
type RedisStore struct {
	rdb *redis.Client
}

// NewRedisStore wraps an existing Redis client.
func NewRedisStore(rdb *redis.Client) *RedisStore {
	return &RedisStore{rdb: rdb}
}

// NewRedisClient opens a Redis connection for the counter store.
func NewRedisClient(addr, password string) *redis.Client {
	return redis.NewClient(&redis.Options{Addr: addr, Password: password, DB: 0})
}

// txAttempts bounds optimistic transaction retries. Conflicts come from
// other workers finishing pages of the same document, so contention is
// short-lived.
const txAttempts = 16

// retryTxConflicts reruns an optimistic WATCH transaction while a
// concurrent writer keeps invalidating the watched keys. go-redis
// surfaces such conflicts as redis.TxFailedErr and does not retry them
// itself.
func retryTxConflicts(do func() error) error {
	var err error
	for attempt := 0; attempt < txAttempts; attempt++ {
		err = do()
		if !errors.Is(err, redis.TxFailedErr) {
			return err
		}
	}
	return fmt.Errorf("transaction kept conflicting after %d attempts: %w", txAttempts, err)
}

func (s *RedisStore) SetRunning(ctx context.Context, docID string) error {
	if err := s.rdb.Set(ctx, runningKey(docID), 1, 0).Err(); err != nil {
		return fmt.Errorf("failed to set running flag: %w", err)
	}
	return nil
}

func (s *RedisStore) StillProcessing(ctx context.Context, docID string) (bool, error) {
	val, err := s.rdb.Get(ctx, runningKey(docID)).Result()
	if errors.Is(err, redis.Nil) {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("failed to read running flag: %w", err)
	}
	return val == "1", nil
}

func (s *RedisStore) Initialize(ctx context.Context, docID string, pageCount int) error {
	dimsKey := dimensionsKey(docID)

	// Watch the dimensions set so a concurrent extraction worker adding a
	// dimension key forces a clean retry.
	err := retryTxConflicts(func() error {
		return s.rdb.Watch(ctx, func(tx *redis.Tx) error {
			existing, err := tx.SMembers(ctx, dimsKey).Result()
			if err != nil && !errors.Is(err, redis.Nil) {
				return err
			}

			_, err = tx.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
				pipe.Set(ctx, pageCountKey(docID), pageCount, 0)
				pipe.Set(ctx, imagesRemainingKey(docID), pageCount, 0)
				pipe.Set(ctx, textsRemainingKey(docID), pageCount, 0)

				pipe.Del(ctx, imageBitsKey(docID), textBitsKey(docID))
				if pageCount > 0 {
					// Flood the bitmaps to zero out to the last page.
					pipe.SetBit(ctx, imageBitsKey(docID), int64(pageCount-1), 0)
					pipe.SetBit(ctx, textBitsKey(docID), int64(pageCount-1), 0)
				}

				for _, dimension := range existing {
					pipe.Del(ctx, pageDimensionKey(docID, dimension))
				}
				pipe.Del(ctx, dimsKey, pageTextKey(docID))
				return nil
			})
			return err
		}, dimsKey)
	})
	if err != nil {
		return fmt.Errorf("failed to initialize counters: %w", err)
	}
	return nil
}

func (s *RedisStore) InitializePartial(ctx context.Context, docID string, pageCount int, dirty []int) error {
	dirtySet := make(map[int]bool, len(dirty))
	for _, page := range dirty {
		dirtySet[page] = true
	}

	_, err := s.rdb.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.Set(ctx, pageCountKey(docID), pageCount, 0)
		pipe.Set(ctx, imagesRemainingKey(docID), len(dirty), 0)
		pipe.Set(ctx, textsRemainingKey(docID), len(dirty), 0)

		// Clean pages start with their bits set so only the dirty pages
		// count toward completion.
		pipe.Del(ctx, imageBitsKey(docID), textBitsKey(docID))
		for page := 0; page < pageCount; page++ {
			bit := 1
			if dirtySet[page] {
				bit = 0
			}
			pipe.SetBit(ctx, imageBitsKey(docID), int64(page), bit)
			pipe.SetBit(ctx, textBitsKey(docID), int64(page), bit)
		}

		pipe.Del(ctx, pageTextKey(docID))
		return nil
	})
	if err != nil {
		return fmt.Errorf("failed to initialize partial counters: %w", err)
	}
	return nil
}

func (s *RedisStore) PageExtracted(ctx context.Context, docID string, page int) (bool, error) {
	return s.getBit(ctx, imageBitsKey(docID), page)
}

func (s *RedisStore) PageOCRd(ctx context.Context, docID string, page int) (bool, error) {
	return s.getBit(ctx, textBitsKey(docID), page)
}

func (s *RedisStore) getBit(ctx context.Context, key string, page int) (bool, error) {
	bit, err := s.rdb.GetBit(ctx, key, int64(page)).Result()
	if err != nil {
		return false, fmt.Errorf("failed to read page bit: %w", err)
	}
	return bit != 0, nil
}

func (s *RedisStore) RegisterPageExtracted(ctx context.Context, docID string, page int) (bool, error) {
	return s.registerPage(ctx, imagesRemainingKey(docID), imageBitsKey(docID), page)
}

func (s *RedisStore) RegisterPageOCRd(ctx context.Context, docID string, page int) (bool, error) {
	return s.registerPage(ctx, textsRemainingKey(docID), textBitsKey(docID), page)
}

// registerPage checks the page bit and, if unset, decrements the
// remaining counter and sets the bit in one transaction. The watch on the
// bits key makes a concurrent duplicate registration retry and then see
// the bit already set.
func (s *RedisStore) registerPage(ctx context.Context, remainingKey, bitsKey string, page int) (bool, error) {
	var done bool
	err := retryTxConflicts(func() error {
		done = false
		return s.rdb.Watch(ctx, func(tx *redis.Tx) error {
			bit, err := tx.GetBit(ctx, bitsKey, int64(page)).Result()
			if err != nil {
				return err
			}
			if bit != 0 {
				// Already registered; duplicate delivery.
				return nil
			}

			var remaining *redis.IntCmd
			_, err = tx.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
				remaining = pipe.Decr(ctx, remainingKey)
				pipe.SetBit(ctx, bitsKey, int64(page), 1)
				return nil
			})
			if err != nil {
				return err
			}
			done = remaining.Val() == 0
			return nil
		}, bitsKey)
	})
	if err != nil {
		return false, fmt.Errorf("failed to register page completion: %w", err)
	}
	return done, nil
}

func (s *RedisStore) AddPageDimension(ctx context.Context, docID, dimension string, page int) error {
	_, err := s.rdb.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.SAdd(ctx, dimensionsKey(docID), dimension)
		pipe.SAdd(ctx, pageDimensionKey(docID, dimension), page)
		return nil
	})
	if err != nil {
		return fmt.Errorf("failed to record page dimension: %w", err)
	}
	return nil
}

func (s *RedisStore) PageDimensions(ctx context.Context, docID string) (map[string][]int, error) {
	dimensions, err := s.rdb.SMembers(ctx, dimensionsKey(docID)).Result()
	if err != nil && !errors.Is(err, redis.Nil) {
		return nil, fmt.Errorf("failed to read dimensions: %w", err)
	}

	groups := make(map[string][]int, len(dimensions))
	for _, dimension := range dimensions {
		members, err := s.rdb.SMembers(ctx, pageDimensionKey(docID, dimension)).Result()
		if err != nil && !errors.Is(err, redis.Nil) {
			return nil, fmt.Errorf("failed to read dimension pages: %w", err)
		}
		for _, member := range members {
			page, err := strconv.Atoi(member)
			if err != nil {
				return nil, fmt.Errorf("malformed page number %q in dimension set: %w", member, err)
			}
			groups[dimension] = append(groups[dimension], page)
		}
	}
	return groups, nil
}

func (s *RedisStore) SetFileHash(ctx context.Context, docID, hash string) error {
	if err := s.rdb.Set(ctx, fileHashKey(docID), hash, 0).Err(); err != nil {
		return fmt.Errorf("failed to set file hash: %w", err)
	}
	return nil
}

func (s *RedisStore) PopFileHash(ctx context.Context, docID string) (string, error) {
	hash, err := s.rdb.GetDel(ctx, fileHashKey(docID)).Result()
	if errors.Is(err, redis.Nil) {
		return "", nil
	}
	if err != nil {
		return "", fmt.Errorf("failed to pop file hash: %w", err)
	}
	return hash, nil
}

func (s *RedisStore) WritePageText(ctx context.Context, docID string, page int, text PageText) error {
	encoded, err := json.Marshal(text)
	if err != nil {
		return fmt.Errorf("failed to encode page text: %w", err)
	}
	if err := s.rdb.HSet(ctx, pageTextKey(docID), strconv.Itoa(page), encoded).Err(); err != nil {
		return fmt.Errorf("failed to write page text: %w", err)
	}
	return nil
}

func (s *RedisStore) AllPageText(ctx context.Context, docID string) (map[int]PageText, error) {
	entries, err := s.rdb.HGetAll(ctx, pageTextKey(docID)).Result()
	if err != nil {
		return nil, fmt.Errorf("failed to read page text: %w", err)
	}
	texts := make(map[int]PageText, len(entries))
	for field, value := range entries {
		page, err := strconv.Atoi(field)
		if err != nil {
			return nil, fmt.Errorf("malformed page text field %q: %w", field, err)
		}
		var text PageText
		if err := json.Unmarshal([]byte(value), &text); err != nil {
			return nil, fmt.Errorf("malformed page text for page %d: %w", page, err)
		}
		texts[page] = text
	}
	return texts, nil
}

func (s *RedisStore) Progress(ctx context.Context, docID string) (Progress, error) {
	values, err := s.rdb.MGet(ctx,
		imagesRemainingKey(docID),
		textsRemainingKey(docID),
		pageCountKey(docID),
	).Result()
	if err != nil {
		return Progress{}, fmt.Errorf("failed to read progress: %w", err)
	}

	parse := func(v interface{}) *int {
		str, ok := v.(string)
		if !ok {
			return nil
		}
		n, err := strconv.Atoi(str)
		if err != nil {
			return nil
		}
		return &n
	}
	return Progress{
		Images: parse(values[0]),
		Texts:  parse(values[1]),
		Pages:  parse(values[2]),
	}, nil
}

func (s *RedisStore) CleanUp(ctx context.Context, docID string) error {
	dimsKey := dimensionsKey(docID)

	err := retryTxConflicts(func() error {
		return s.rdb.Watch(ctx, func(tx *redis.Tx) error {
			existing, err := tx.SMembers(ctx, dimsKey).Result()
			if err != nil && !errors.Is(err, redis.Nil) {
				return err
			}

			_, err = tx.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
				pipe.Del(ctx,
					imagesRemainingKey(docID),
					textsRemainingKey(docID),
					pageCountKey(docID),
					runningKey(docID),
					imageBitsKey(docID),
					textBitsKey(docID),
					pageTextKey(docID),
					fileHashKey(docID),
				)
				for _, dimension := range existing {
					pipe.Del(ctx, pageDimensionKey(docID, dimension))
				}
				pipe.Del(ctx, dimsKey)
				return nil
			})
			return err
		}, dimsKey)
	})
	if err != nil {
		return fmt.Errorf("failed to clean up counters: %w", err)
	}
	return nil
}
