// Package kafka prepares the video-job topic and waits for the broker to come up
package kafka

import (
	"context"
	"errors"
	"log"
	"time"

	kafkago "github.com/segmentio/kafka-go"
)

// InitKafkaTopics - creates topics in kafka
func InitKafkaTopics(ctx context.Context, brokerAddr string, delay time.Duration, topics ...string) {
	client := &kafkago.Client{
		Addr:    kafkago.TCP(brokerAddr),
		Timeout: 10 * time.Second,
	}

	req := kafkago.CreateTopicsRequest{
		Topics: make([]kafkago.TopicConfig, 0, len(topics)),
	}

	for _, t := range topics {
		topic := kafkago.TopicConfig{
			Topic:             t,
			NumPartitions:     1,
			ReplicationFactor: 1,
		}
		req.Topics = append(req.Topics, topic)
	}

	for {
		select {
		case <-ctx.Done():
			log.Println("InitKafkaTopics canceled or timed out")
			return
		default:
		}

		resp, err := client.CreateTopics(ctx, &req)
		if err != nil {
			log.Printf("Failed to run topics creation request: %v\nWait %v before next try...", err, delay)
			sleepCtx(ctx, delay)
			continue
		}

		successT := 0
		for k, v := range resp.Errors {
			switch {
			case v == nil, errors.Is(v, kafkago.TopicAlreadyExists):
				successT++
			default:
				log.Printf("Topic %q creation error: %v", k, v)
			}
		}

		if len(resp.Errors) == successT {
			log.Println("All topics created successfully!")
			return
		}
		sleepCtx(ctx, delay)
	}
}

// WaitKafkaReady - ждем пока брокер начнет принимать соединения
func WaitKafkaReady(ctx context.Context, brokerAddr string, delay time.Duration) error {
	for {
		conn, err := kafkago.DialContext(ctx, "tcp", brokerAddr)
		if err == nil {
			if errConn := conn.Close(); errConn != nil {
				log.Println("Failed to close connection after testing Kafka readyness:", errConn)
			}
			break
		}
		log.Printf("Kafka not ready, retrying in %v...", delay)
		if !sleepCtx(ctx, delay) {
			return ctx.Err()
		}
	}
	log.Println("Kafka is ready!")
	return nil
}

// sleepCtx returns false if ctx ended before d passed.
func sleepCtx(ctx context.Context, d time.Duration) bool {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return false
	case <-t.C:
		return true
	}
}
