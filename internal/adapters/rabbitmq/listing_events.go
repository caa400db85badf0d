// Package rabbitmq publishes scrape lifecycle events so downstream consumers
// (rankers, alerting) can react to fresh listings without polling storage.
package rabbitmq

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	amqp "github.com/rabbitmq/amqp091-go"

	"github.com/JoeBashe/stl-scraper/internal/core/domain"
)

const (
	exchangeName = "stl.listings"
	exchangeType = "topic"

	routingKeyScraped = "listing.scraped"

	publishTimeout = 10 * time.Second
)

// listingScrapedEvent is the wire shape of a listing.scraped event. It carries
// only identity and location; consumers fetch the full document from storage.
type listingScrapedEvent struct {
	ListingID string    `json:"listing_id"`
	Source    string    `json:"source"`
	URL       string    `json:"url"`
	City      string    `json:"city,omitempty"`
	Country   string    `json:"country,omitempty"`
	ScrapedAt time.Time `json:"scraped_at"`
}

// ListingEventsPublisher implements port.EventsPort on a RabbitMQ exchange.
type ListingEventsPublisher struct {
	connection *amqp.Connection
	channel    *amqp.Channel
}

// NewListingEventsPublisher dials the broker and declares the durable topic
// exchange the events are published to.
func NewListingEventsPublisher(url string) (*ListingEventsPublisher, error) {
	connection, err := amqp.Dial(url)
	if err != nil {
		return nil, fmt.Errorf("rabbitmq publisher: failed to dial: %w", err)
	}

	channel, err := connection.Channel()
	if err != nil {
		_ = connection.Close()
		return nil, fmt.Errorf("rabbitmq publisher: failed to open channel: %w", err)
	}

	if err := channel.ExchangeDeclare(
		exchangeName,
		exchangeType,
		true,  // durable
		false, // auto-delete
		false, // internal
		false, // no-wait
		nil,
	); err != nil {
		_ = channel.Close()
		_ = connection.Close()
		return nil, fmt.Errorf("rabbitmq publisher: failed to declare exchange %q: %w", exchangeName, err)
	}

	return &ListingEventsPublisher{connection: connection, channel: channel}, nil
}

// PublishListingScraped announces that a listing was scraped and saved.
func (p *ListingEventsPublisher) PublishListingScraped(ctx context.Context, listing domain.Listing) error {
	body, err := json.Marshal(listingScrapedEvent{
		ListingID: listing.ID,
		Source:    listing.Source,
		URL:       listing.URL,
		City:      listing.City,
		Country:   listing.Country,
		ScrapedAt: listing.UpdatedAt,
	})
	if err != nil {
		return fmt.Errorf("rabbitmq publisher: failed to marshal event for listing %s: %w", listing.ID, err)
	}

	publishCtx, cancel := context.WithTimeout(ctx, publishTimeout)
	defer cancel()

	err = p.channel.PublishWithContext(
		publishCtx,
		exchangeName,
		routingKeyScraped,
		false, // mandatory
		false, // immediate
		amqp.Publishing{
			ContentType:  "application/json",
			Body:         body,
			DeliveryMode: amqp.Persistent,
			Timestamp:    time.Now(),
		},
	)
	if err != nil {
		return fmt.Errorf("rabbitmq publisher: failed to publish event for listing %s: %w", listing.ID, err)
	}
	return nil
}

// Close releases the channel and connection.
func (p *ListingEventsPublisher) Close() error {
	var firstErr error
	if p.channel != nil {
		if err := p.channel.Close(); err != nil {
			firstErr = err
		}
		p.channel = nil
	}
	if p.connection != nil {
		if err := p.connection.Close(); err != nil && firstErr == nil {
			firstErr = err
		}
		p.connection = nil
	}
	return firstErr
}
