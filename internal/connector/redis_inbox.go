package connector

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/redis/go-redis/v9"

	"github.com/spec-kit/aviation-mailbot/internal/domain"
	"github.com/spec-kit/aviation-mailbot/pkg/util/errorutil"
)

// RedisInbox stores webhook-delivered mail in Redis: a hash of message
// bodies and a list of unread ids per mailbox.
type RedisInbox struct {
	client *redis.Client
	prefix string
}

func NewRedisInbox(client *redis.Client, prefix string) *RedisInbox {
	return &RedisInbox{client: client, prefix: prefix}
}

func (r *RedisInbox) messagesKey(mailbox string) string {
	return fmt.Sprintf("%s:inbox:%s:messages", r.prefix, mailbox)
}

func (r *RedisInbox) unreadKey(mailbox string) string {
	return fmt.Sprintf("%s:inbox:%s:unread", r.prefix, mailbox)
}

func (r *RedisInbox) Enqueue(ctx context.Context, msg domain.InboundMessage) error {
	payload, err := json.Marshal(msg)
	if err != nil {
		return err
	}
	added, err := r.client.HSetNX(ctx, r.messagesKey(msg.Mailbox), msg.ExternalID, payload).Result()
	if err != nil {
		return errorutil.NewTransientError("inbox enqueue failed", err)
	}
	if !added {
		return nil
	}
	if err := r.client.RPush(ctx, r.unreadKey(msg.Mailbox), msg.ExternalID).Err(); err != nil {
		return errorutil.NewTransientError("inbox enqueue failed", err)
	}
	return nil
}

func (r *RedisInbox) FetchUnread(ctx context.Context, mailbox string, limit int) ([]domain.InboundMessage, error) {
	stop := int64(-1)
	if limit > 0 {
		stop = int64(limit - 1)
	}
	ids, err := r.client.LRange(ctx, r.unreadKey(mailbox), 0, stop).Result()
	if err != nil {
		return nil, errorutil.NewTransientError("inbox fetch failed", err)
	}
	if len(ids) == 0 {
		return nil, nil
	}
	payloads, err := r.client.HMGet(ctx, r.messagesKey(mailbox), ids...).Result()
	if err != nil {
		return nil, errorutil.NewTransientError("inbox fetch failed", err)
	}

	out := make([]domain.InboundMessage, 0, len(ids))
	for i, raw := range payloads {
		s, ok := raw.(string)
		if !ok {
			// id without a body; keep its external id so the pipeline records it
			out = append(out, domain.InboundMessage{ExternalID: ids[i], Mailbox: mailbox})
			continue
		}
		var msg domain.InboundMessage
		if err := json.Unmarshal([]byte(s), &msg); err != nil {
			out = append(out, domain.InboundMessage{ExternalID: ids[i], Mailbox: mailbox})
			continue
		}
		out = append(out, msg)
	}
	return out, nil
}

func (r *RedisInbox) MarkRead(ctx context.Context, mailbox, externalID string) error {
	_, err := r.client.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.LRem(ctx, r.unreadKey(mailbox), 0, externalID)
		pipe.HDel(ctx, r.messagesKey(mailbox), externalID)
		return nil
	})
	if err != nil {
		return errorutil.NewTransientError("inbox mark read failed", err)
	}
	return nil
}
