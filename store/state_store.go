package store

import (
	"fmt"
	"time"
)

// AdminSession is the conversational state of an admin wizard: which field
// the panel is waiting for, plus whatever ids were collected along the way.
// It lives entirely outside the core purchase/catalog logic.
type AdminSession struct {
	State     string            `json:"state"`
	ProductID int64             `json:"product_id,omitempty"`
	AccountID int64             `json:"account_id,omitempty"`
	Fields    map[string]string `json:"fields,omitempty"`
}

type RedisStateStore struct {
	client *RedisClient
	ttl    time.Duration
}

func NewRedisStateStore(redisClient *RedisClient, ttlHours int) *RedisStateStore {
	ttl := time.Duration(ttlHours) * time.Hour
	if ttlHours <= 0 {
		ttl = 24 * time.Hour
	}
	return &RedisStateStore{
		client: redisClient,
		ttl:    ttl,
	}
}

func (s *RedisStateStore) GetAdminSession(adminID int64) (*AdminSession, error) {
	var sess AdminSession
	if err := s.client.Get(fmt.Sprintf("admin_state:%d", adminID), &sess); err != nil {
		return nil, nil
	}
	if sess.Fields == nil {
		sess.Fields = make(map[string]string)
	}
	return &sess, nil
}

func (s *RedisStateStore) SetAdminSession(adminID int64, sess *AdminSession) error {
	return s.client.Set(fmt.Sprintf("admin_state:%d", adminID), sess, s.ttl)
}

func (s *RedisStateStore) ClearAdminSession(adminID int64) error {
	return s.client.Del(fmt.Sprintf("admin_state:%d", adminID))
}
