package mempool

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/go-zeromq/zmq4"
	"github.com/mypivxwallet/wallet_engine/logger"
	"github.com/mypivxwallet/wallet_engine/metrics"
	"github.com/mypivxwallet/wallet_engine/transaction"
)

const TopicRawTx = "rawtx"

// TopicHandler receives the body frame of a zmq notification.
type TopicHandler func(topic string, data []byte) error

// ZMQClient subscribes to one node endpoint.
type ZMQClient struct {
	address  string
	logger   logger.Logger
	handlers map[string]TopicHandler

	cancel context.CancelFunc
	wg     sync.WaitGroup
}

func NewZMQClient(address string, log logger.Logger) *ZMQClient {
	return &ZMQClient{
		address:  address,
		logger:   log,
		handlers: make(map[string]TopicHandler),
	}
}

// AddTopic must be called before Start.
func (c *ZMQClient) AddTopic(topic string, handler TopicHandler) {
	c.handlers[topic] = handler
}

func (c *ZMQClient) Start(ctx context.Context) {
	ctx, c.cancel = context.WithCancel(ctx)
	c.wg.Add(1)
	go func() {
		defer c.wg.Done()
		for {
			if err := c.listen(ctx); err != nil {
				c.logger.Warnf("zmq %s: %v, reconnecting", c.address, err)
			}
			select {
			case <-ctx.Done():
				return
			case <-time.After(5 * time.Second):
			}
		}
	}()
}

func (c *ZMQClient) listen(ctx context.Context) error {
	sub := zmq4.NewSub(ctx)
	defer sub.Close()

	if err := sub.Dial(c.address); err != nil {
		return fmt.Errorf("dial: %w", err)
	}
	for topic := range c.handlers {
		if err := sub.SetOption(zmq4.OptionSubscribe, topic); err != nil {
			return fmt.Errorf("subscribe %s: %w", topic, err)
		}
	}
	c.logger.Infof("zmq subscribed to %s", c.address)

	for {
		msg, err := sub.Recv()
		if err != nil {
			if ctx.Err() != nil {
				return nil
			}
			return fmt.Errorf("recv: %w", err)
		}
		if len(msg.Frames) < 2 {
			continue
		}
		topic := string(msg.Frames[0])
		handler, ok := c.handlers[topic]
		if !ok {
			continue
		}
		if err := handler(topic, msg.Frames[1]); err != nil {
			c.logger.Warnf("zmq %s handler: %v", topic, err)
		}
	}
}

func (c *ZMQClient) Stop() {
	if c.cancel != nil {
		c.cancel()
	}
	c.wg.Wait()
}

// Listener feeds raw transactions announced by the node to the wallet.
type Listener struct {
	clients []*ZMQClient
	onTx    func(*transaction.Transaction)
	logger  logger.Logger
}

func NewListener(addresses []string, log logger.Logger, onTx func(*transaction.Transaction)) *Listener {
	metrics.Init()
	l := &Listener{onTx: onTx, logger: log}
	for _, addr := range addresses {
		client := NewZMQClient(addr, log)
		client.AddTopic(TopicRawTx, l.HandleRawTransaction)
		l.clients = append(l.clients, client)
	}
	return l
}

func (l *Listener) HandleRawTransaction(_ string, data []byte) error {
	metrics.MempoolNotifications.Inc()
	tx, err := transaction.Deserialize(data)
	if err != nil {
		return fmt.Errorf("failed to parse transaction: %w", err)
	}
	l.onTx(tx)
	return nil
}

func (l *Listener) Start(ctx context.Context) {
	for _, c := range l.clients {
		c.Start(ctx)
	}
}

func (l *Listener) Stop() {
	for _, c := range l.clients {
		c.Stop()
	}
}
