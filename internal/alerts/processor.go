package alerts

import (
	"context"
	"encoding/json"
	"log"
	"os"

	"github.com/hibiken/asynq"
)

var (
	client *asynq.Client
	server *asynq.Server
)

// Init starts the Asynq server and initializes a shared client.
func Init() {
	redisAddr := os.Getenv("REDIS_ADDR")
	if redisAddr == "" {
		if host := os.Getenv("REDIS_HOST"); host != "" {
			port := os.Getenv("REDIS_PORT")
			if port == "" {
				port = "6379"
			}
			redisAddr = host + ":" + port
		} else {
			redisAddr = "redis:6379"
			if os.Getenv("RUN_LOCAL") == "true" {
				redisAddr = "127.0.0.1:6379"
			}
		}
	}

	opts := asynq.RedisClientOpt{Addr: redisAddr}
	client = asynq.NewClient(opts)

	mux := asynq.NewServeMux()
	mux.HandleFunc(TaskWelcomeEmail, handleWelcomeEmail)
	mux.HandleFunc(TaskListingClaimed, handleListingClaimed)
	mux.HandleFunc(TaskRiderAssigned, handleRiderAssigned)
	mux.HandleFunc(TaskDeliveryCompleted, handleDeliveryCompleted)
	mux.HandleFunc(TaskListingExpired, handleListingExpired)

	server = asynq.NewServer(opts, asynq.Config{
		Concurrency: 5,
		Queues: map[string]int{
			"emails": 10,
			"alerts": 5,
		},
	})
	go func() {
		if err := server.Run(mux); err != nil {
			log.Printf("Asynq server stopped: %v", err)
		}
	}()

	log.Printf("Asynq initialized (addr=%s)", redisAddr)
}

// Close releases client and stops server.
func Close() {
	if client != nil {
		_ = client.Close()
	}
	if server != nil {
		server.Shutdown()
	}
}

func handleWelcomeEmail(_ context.Context, t *asynq.Task) error {
	var p WelcomeEmailPayload
	if err := json.Unmarshal(t.Payload(), &p); err != nil {
		return err
	}
	if err := SendEmail(p.Email, p.Envelope.Subject, p.Envelope.Body); err != nil {
		log.Printf("[notify][ERROR] WelcomeEmail send failed: %v", err)
		return err
	}
	log.Printf("[notify] WelcomeEmail sent -> to=%s user=%s", p.Email, p.UserID)
	return nil
}

func handleListingClaimed(_ context.Context, t *asynq.Task) error {
	var p ListingClaimedPayload
	if err := json.Unmarshal(t.Payload(), &p); err != nil {
		return err
	}
	if err := SendEmail(p.Email, p.Envelope.Subject, p.Envelope.Body); err != nil {
		log.Printf("[notify][ERROR] ListingClaimed send failed: %v", err)
		return err
	}
	log.Printf("[notify] ListingClaimed sent -> listing=%s to=%s", p.ListingID, p.Email)
	return nil
}

func handleRiderAssigned(_ context.Context, t *asynq.Task) error {
	var p RiderAssignedPayload
	if err := json.Unmarshal(t.Payload(), &p); err != nil {
		return err
	}
	if err := SendEmail(p.Email, p.Envelope.Subject, p.Envelope.Body); err != nil {
		log.Printf("[notify][ERROR] RiderAssigned send failed: %v", err)
		return err
	}
	log.Printf("[notify] RiderAssigned sent -> listing=%s rider=%s", p.ListingID, p.RiderID)
	return nil
}

func handleDeliveryCompleted(_ context.Context, t *asynq.Task) error {
	var p DeliveryCompletedPayload
	if err := json.Unmarshal(t.Payload(), &p); err != nil {
		return err
	}
	if err := SendEmail(p.Email, p.Envelope.Subject, p.Envelope.Body); err != nil {
		log.Printf("[notify][ERROR] DeliveryCompleted send failed: %v", err)
		return err
	}
	log.Printf("[notify] DeliveryCompleted sent -> listing=%s to=%s", p.ListingID, p.Email)
	return nil
}

func handleListingExpired(_ context.Context, t *asynq.Task) error {
	var p ListingExpiredPayload
	if err := json.Unmarshal(t.Payload(), &p); err != nil {
		return err
	}
	if err := SendEmail(p.Email, p.Envelope.Subject, p.Envelope.Body); err != nil {
		log.Printf("[notify][ERROR] ListingExpired send failed: %v", err)
		return err
	}
	log.Printf("[notify] ListingExpired sent -> listing=%s to=%s", p.ListingID, p.Email)
	return nil
}
