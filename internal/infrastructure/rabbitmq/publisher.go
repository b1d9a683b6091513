// Package rabbitmq は予約イベントを RabbitMQ に送信する
package rabbitmq

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"time"

	amqp "github.com/rabbitmq/amqp091-go"
	"go.uber.org/zap"

	"github.com/sanosuguru/go-restaurant-seat-reservation/internal/domain/booking"
	"github.com/sanosuguru/go-restaurant-seat-reservation/internal/pkg/logger"
)

const (
	dialTimeout = 5 * time.Second
	minBackoff  = time.Second
	maxBackoff  = 30 * time.Second
)

var (
	errPublisherClosed = errors.New("publisher は既に閉じられています")
	errNotConnected    = errors.New("RabbitMQ に未接続のためイベントを送信できません")
)

// Publisher は durable キューへ JSON のイベントを永続メッセージとして送信する
// 接続はバックグラウンドで維持し、チャネルはゴルーチン間で共有できないため mu で保護する
type Publisher struct {
	url         string
	queue       string
	dialTimeout time.Duration

	mu     sync.Mutex
	conn   *amqp.Connection
	ch     *amqp.Channel
	closed bool
	done   chan struct{}
}

// NewPublisher は送信者を作成し、接続をバックグラウンドで開始する
// 接続が確立するまでの Publish は待たずに errNotConnected を返す
func NewPublisher(url, queue string) *Publisher {
	p := &Publisher{
		url:         url,
		queue:       queue,
		dialTimeout: dialTimeout,
		done:        make(chan struct{}),
	}
	go p.run()
	return p
}

// run は切断のたびに指数バックオフで再接続する
func (p *Publisher) run() {
	backoff := minBackoff
	for {
		conn, ch, err := p.dial()
		if err != nil {
			logger.Warn("RabbitMQ への接続に失敗しました",
				zap.String("queue", p.queue),
				zap.Duration("retry_in", backoff),
				zap.Error(err),
			)
			if !p.sleep(backoff) {
				return
			}
			backoff = min(backoff*2, maxBackoff)
			continue
		}
		backoff = minBackoff

		connClosed := conn.NotifyClose(make(chan *amqp.Error, 1))
		chClosed := ch.NotifyClose(make(chan *amqp.Error, 1))
		if !p.attach(conn, ch) {
			_ = ch.Close()
			_ = conn.Close()
			return
		}
		logger.Info("RabbitMQ に接続しました", zap.String("queue", p.queue))

		var reason *amqp.Error
		select {
		case <-p.done:
			return
		case reason = <-connClosed:
		case reason = <-chClosed:
		}
		p.detach()
		_ = conn.Close()
		if reason != nil {
			logger.Warn("RabbitMQ との接続が切れました", zap.String("queue", p.queue), zap.String("reason", reason.Reason))
		} else {
			logger.Warn("RabbitMQ との接続が切れました", zap.String("queue", p.queue))
		}
	}
}

func (p *Publisher) dial() (*amqp.Connection, *amqp.Channel, error) {
	conn, err := amqp.DialConfig(p.url, amqp.Config{Dial: amqp.DefaultDial(p.dialTimeout)})
	if err != nil {
		return nil, nil, fmt.Errorf("RabbitMQ への接続に失敗: %w", err)
	}
	ch, err := conn.Channel()
	if err != nil {
		_ = conn.Close()
		return nil, nil, fmt.Errorf("チャネルのオープンに失敗: %w", err)
	}
	if _, err := ch.QueueDeclare(p.queue, true, false, false, false, nil); err != nil {
		_ = ch.Close()
		_ = conn.Close()
		return nil, nil, fmt.Errorf("キューの宣言に失敗: %w", err)
	}
	return conn, ch, nil
}

func (p *Publisher) sleep(d time.Duration) bool {
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-p.done:
		return false
	case <-timer.C:
		return true
	}
}

// attach は閉じられていなければ接続を登録する
func (p *Publisher) attach(conn *amqp.Connection, ch *amqp.Channel) bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.closed {
		return false
	}
	p.conn, p.ch = conn, ch
	return true
}

func (p *Publisher) detach() {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.conn, p.ch = nil, nil
}

func (p *Publisher) connected() bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.ch != nil && !p.ch.IsClosed()
}

// Publish はイベントを送信する
// 未接続の間は再接続を待たずにエラーを返す
func (p *Publisher) Publish(ctx context.Context, event booking.Event) error {
	msg, err := newMessage(event)
	if err != nil {
		return err
	}

	p.mu.Lock()
	defer p.mu.Unlock()

	if p.closed {
		return errPublisherClosed
	}
	if p.ch == nil || p.ch.IsClosed() {
		return errNotConnected
	}
	if err := p.ch.PublishWithContext(ctx, "", p.queue, false, false, msg); err != nil {
		return fmt.Errorf("イベントの送信に失敗: %w", err)
	}
	return nil
}

// Close は再接続を止めて接続を閉じる
func (p *Publisher) Close() error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.closed {
		return nil
	}
	p.closed = true
	close(p.done)

	var err error
	if p.ch != nil {
		err = errors.Join(err, ignoreClosed(p.ch.Close()))
		p.ch = nil
	}
	if p.conn != nil {
		err = errors.Join(err, ignoreClosed(p.conn.Close()))
		p.conn = nil
	}
	return err
}

func ignoreClosed(err error) error {
	if errors.Is(err, amqp.ErrClosed) {
		return nil
	}
	return err
}

func newMessage(event booking.Event) (amqp.Publishing, error) {
	body, err := json.Marshal(event)
	if err != nil {
		return amqp.Publishing{}, fmt.Errorf("イベントのエンコードに失敗: %w", err)
	}
	return amqp.Publishing{
		ContentType:  "application/json",
		DeliveryMode: amqp.Persistent,
		Type:         string(event.Type),
		MessageId:    fmt.Sprintf("%s:%d", event.Type, event.BookingID),
		Timestamp:    time.Now().UTC(),
		Body:         body,
	}, nil
}

var _ booking.EventPublisher = (*Publisher)(nil)
