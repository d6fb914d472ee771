package main

import (
	"bytes"
	"encoding/json"
	"flag"
	"fmt"
	"io"
	"log"
	"math/rand"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"sync"
	"sync/atomic"
	"syscall"
	"time"

	"github.com/IBM/sarama"
	"github.com/google/uuid"
)

// WatchEvent mirrors the ingestion message format
type WatchEvent struct {
	UserID    string    `json:"user_id"`
	VideoID   string    `json:"video_id"`
	WatchedAt time.Time `json:"watched_at"`
}

// registerUser creates one synthetic account through the public API and
// returns its id. Watch records carry a foreign key on users, so events for
// accounts the server never saw would be dropped by the consumer.
func registerUser(apiBase string, i int, nonce string) (string, error) {
	payload, err := json.Marshal(map[string]string{
		"email":    fmt.Sprintf("watcher-%d-%s@example.com", i, nonce),
		"username": fmt.Sprintf("watcher-%d-%s", i, nonce),
		"password": "watch-events-1",
	})
	if err != nil {
		return "", err
	}

	resp, err := http.Post(apiBase+"/api/v1/auth/register", "application/json", bytes.NewReader(payload))
	if err != nil {
		return "", err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusCreated {
		body, _ := io.ReadAll(resp.Body)
		return "", fmt.Errorf("register returned %d: %s", resp.StatusCode, body)
	}

	var reply struct {
		Data struct {
			User struct {
				ID string `json:"id"`
			} `json:"user"`
		} `json:"data"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&reply); err != nil {
		return "", err
	}
	if reply.Data.User.ID == "" {
		return "", fmt.Errorf("register response missing user id")
	}
	return reply.Data.User.ID, nil
}

func seedUsers(apiBase string, n int) ([]string, error) {
	nonce := uuid.NewString()[:8]
	ids := make([]string, n)
	for i := range ids {
		id, err := registerUser(apiBase, i, nonce)
		if err != nil {
			return nil, fmt.Errorf("seeding user %d: %w", i, err)
		}
		ids[i] = id
	}
	return ids, nil
}

func main() {
	// Command line flags
	brokers := flag.String("brokers", "localhost:9094", "Kafka brokers (comma-separated)")
	topic := flag.String("topic", "watch-events", "Kafka topic")
	apiBase := flag.String("api", "http://localhost:8080", "API base URL used to seed accounts")
	totalUsers := flag.Int("users", 200, "Number of simulated users")
	totalVideos := flag.Int("videos", 50, "Number of simulated videos")
	eventsPerSecond := flag.Int("rate", 20, "Events per second")
	duration := flag.Duration("duration", 0, "Duration to run (0 = forever)")
	flag.Parse()

	brokerList := strings.Split(*brokers, ",")

	fmt.Println("Watch event producer")
	fmt.Printf("  Brokers:     %s\n", *brokers)
	fmt.Printf("  Topic:       %s\n", *topic)
	fmt.Printf("  API:         %s\n", *apiBase)
	fmt.Printf("  Users:       %d\n", *totalUsers)
	fmt.Printf("  Videos:      %d\n", *totalVideos)
	fmt.Printf("  Events/sec:  %d\n", *eventsPerSecond)
	fmt.Println()

	fmt.Printf("Registering %d accounts via %s\n", *totalUsers, *apiBase)
	userIDs, err := seedUsers(*apiBase, *totalUsers)
	if err != nil {
		log.Fatalf("Failed to seed users: %v", err)
	}

	// Video ids carry no foreign key, so stable random ids are enough and
	// repeated sends exercise the duplicate path too
	videoIDs := make([]string, *totalVideos)
	for i := range videoIDs {
		videoIDs[i] = uuid.NewString()
	}

	// Configure Sarama producer
	config := sarama.NewConfig()
	config.Producer.RequiredAcks = sarama.WaitForLocal
	config.Producer.Compression = sarama.CompressionSnappy
	config.Producer.Flush.Frequency = 100 * time.Millisecond
	config.Producer.Flush.Messages = 100
	config.Producer.Return.Successes = true
	config.Producer.Return.Errors = true

	// Create producer
	producer, err := sarama.NewAsyncProducer(brokerList, config)
	if err != nil {
		log.Fatalf("Failed to create producer: %v", err)
	}
	defer producer.Close()

	// Handle producer errors and successes
	var successCount, errorCount int64
	var wg sync.WaitGroup

	wg.Add(1)
	go func() {
		defer wg.Done()
		for range producer.Successes() {
			atomic.AddInt64(&successCount, 1)
		}
	}()

	wg.Add(1)
	go func() {
		defer wg.Done()
		for err := range producer.Errors() {
			atomic.AddInt64(&errorCount, 1)
			log.Printf("Producer error: %v", err)
		}
	}()

	// Handle shutdown
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)

	done := make(chan struct{})

	// Send message helper
	sendEvent := func(ev WatchEvent) {
		data, err := json.Marshal(ev)
		if err != nil {
			log.Printf("Failed to marshal event: %v", err)
			return
		}

		msg := &sarama.ProducerMessage{
			Topic: *topic,
			Key:   sarama.StringEncoder(ev.UserID),
			Value: sarama.ByteEncoder(data),
		}

		select {
		case producer.Input() <- msg:
		case <-done:
			return
		}
	}

	fmt.Printf("Producing watch events (%d/sec), press Ctrl+C to stop\n\n", *eventsPerSecond)

	interval := time.Second / time.Duration(*eventsPerSecond)
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	statsTicker := time.NewTicker(5 * time.Second)
	defer statsTicker.Stop()

	var endTime time.Time
	if *duration > 0 {
		endTime = time.Now().Add(*duration)
	}

	shutdown := func(reason string) {
		fmt.Printf("\n%s\n", reason)
		close(done)
		producer.AsyncClose()
		wg.Wait()
		fmt.Printf("Completed. Sent: %d, Errors: %d\n", atomic.LoadInt64(&successCount), atomic.LoadInt64(&errorCount))
	}

	var eventCount int64

	for {
		select {
		case <-sigChan:
			shutdown("Shutting down...")
			return

		case <-ticker.C:
			if *duration > 0 && time.Now().After(endTime) {
				shutdown("Duration reached, shutting down...")
				return
			}

			// A small group of heavy watchers keeps the leaderboard moving
			var userIdx int
			if rand.Intn(100) < 60 {
				userIdx = rand.Intn(min(20, *totalUsers))
			} else {
				userIdx = rand.Intn(*totalUsers)
			}

			sendEvent(WatchEvent{
				UserID:    userIDs[userIdx],
				VideoID:   videoIDs[rand.Intn(*totalVideos)],
				WatchedAt: time.Now().UTC(),
			})
			atomic.AddInt64(&eventCount, 1)

		case <-statsTicker.C:
			fmt.Printf("[%s] Events: %d | Sent: %d | Errors: %d\n",
				time.Now().Format("15:04:05"),
				atomic.LoadInt64(&eventCount),
				atomic.LoadInt64(&successCount),
				atomic.LoadInt64(&errorCount),
			)
		}
	}
}
