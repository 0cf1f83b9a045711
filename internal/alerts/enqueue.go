package alerts

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/hibiken/asynq"
)

// ensureClient returns a usable client instance
func ensureClient() *asynq.Client {
	if client == nil {
		Init()
	}
	return client
}

// EnqueueWelcomeEmail schedules a welcome email to the user
func EnqueueWelcomeEmail(userID, email, name string) error {
	env := EmailEnvelope{
		To:      email,
		Subject: fmt.Sprintf("Welcome to RescueBite, %s!", name),
		Body:    fmt.Sprintf("Hi %s, thanks for joining RescueBite. Every rescue counts.", name),
	}
	payload := WelcomeEmailPayload{UserID: userID, Name: name, Email: email, Envelope: env, SentAt: time.Now()}
	b, _ := json.Marshal(payload)
	task := asynq.NewTask(TaskWelcomeEmail, b)
	_, err := ensureClient().Enqueue(task, asynq.Queue("emails"))
	return err
}

// EnqueueListingClaimed tells the donor an NGO claimed their donation and
// which pickup code to hand the rider.
func EnqueueListingClaimed(listingID, donorID, ngoID, donorEmail, otp string) error {
	env := EmailEnvelope{
		To:      donorEmail,
		Subject: "Your donation has been claimed",
		Body:    fmt.Sprintf("An NGO has claimed your donation. Give pickup code %s to the rider at handoff.", otp),
	}
	payload := ListingClaimedPayload{ListingID: listingID, DonorID: donorID, NgoID: ngoID, Email: donorEmail, OTP: otp, Envelope: env, SentAt: time.Now()}
	b, _ := json.Marshal(payload)
	task := asynq.NewTask(TaskListingClaimed, b)
	_, err := ensureClient().Enqueue(task, asynq.Queue("emails"))
	return err
}

// EnqueueRiderAssigned tells the NGO a rider is on the way.
func EnqueueRiderAssigned(listingID, ngoID, riderID, ngoEmail string) error {
	env := EmailEnvelope{
		To:      ngoEmail,
		Subject: "A rider is on the way",
		Body:    fmt.Sprintf("A rider accepted pickup for listing %s and is en route to the donor.", listingID),
	}
	payload := RiderAssignedPayload{ListingID: listingID, NgoID: ngoID, RiderID: riderID, Email: ngoEmail, Envelope: env, SentAt: time.Now()}
	b, _ := json.Marshal(payload)
	task := asynq.NewTask(TaskRiderAssigned, b)
	_, err := ensureClient().Enqueue(task, asynq.Queue("emails"))
	return err
}

// EnqueueDeliveryCompleted tells a donor or NGO that the rescue landed.
func EnqueueDeliveryCompleted(listingID, userID, riderID, email string, meals int) error {
	env := EmailEnvelope{
		To:      email,
		Subject: "Delivery completed",
		Body:    fmt.Sprintf("Listing %s was delivered: %d meals rescued.", listingID, meals),
	}
	payload := DeliveryCompletedPayload{ListingID: listingID, UserID: userID, RiderID: riderID, Email: email, Meals: meals, Envelope: env, SentAt: time.Now()}
	b, _ := json.Marshal(payload)
	task := asynq.NewTask(TaskDeliveryCompleted, b)
	_, err := ensureClient().Enqueue(task, asynq.Queue("emails"))
	return err
}

// EnqueueListingExpired tells the donor their donation ran out of shelf
// life before a rescue completed.
func EnqueueListingExpired(listingID, donorID, donorEmail string) error {
	env := EmailEnvelope{
		To:      donorEmail,
		Subject: "Your donation expired",
		Body:    fmt.Sprintf("Listing %s passed its safe shelf life before pickup and was expired. Please dispose of the food safely.", listingID),
	}
	payload := ListingExpiredPayload{ListingID: listingID, DonorID: donorID, Email: donorEmail, Envelope: env, SentAt: time.Now()}
	b, _ := json.Marshal(payload)
	task := asynq.NewTask(TaskListingExpired, b)
	_, err := ensureClient().Enqueue(task, asynq.Queue("alerts"))
	return err
}
