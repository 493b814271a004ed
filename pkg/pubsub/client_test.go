package pubsub

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/angelmondragon/storefront-backend/pkg/config"
)

func TestResourcesPerProcess(t *testing.T) {
	cfg := config.PubSubConfig{
		OrdersTopic:              "sf-order-events",
		OrdersSubscription:       " sf-orders-analytics ",
		NotificationTopic:        "",
		NotificationSubscription: "sf-notification-mailer",
	}

	assert.Equal(t, []string{"sf-order-events"}, PublisherResources(cfg).Topics)
	assert.Empty(t, PublisherResources(cfg).Subscriptions)
	assert.Equal(t, []string{"sf-orders-analytics"}, AnalyticsResources(cfg).Subscriptions)
	assert.Equal(t, []string{"sf-notification-mailer"}, MailerResources(cfg).Subscriptions)
}

func TestNewClientValidates(t *testing.T) {
	_, err := NewClient(context.Background(), config.GCPConfig{}, config.PubSubConfig{}, Resources{Topics: []string{"t"}}, nil)
	assert.ErrorIs(t, err, errProjectIDRequired)

	_, err = NewClient(context.Background(), config.GCPConfig{ProjectID: "p"}, config.PubSubConfig{}, Resources{}, nil)
	assert.ErrorIs(t, err, errNothingRequired)
}

func TestResourceNames(t *testing.T) {
	c := &Client{project: "shop-prod"}

	assert.Equal(t, "projects/shop-prod/subscriptions/sf-orders", c.resourceName("subscriptions", "sf-orders"))
	assert.Equal(t, "projects/other/subscriptions/x", c.resourceName("subscriptions", "projects/other/subscriptions/x"))
	assert.Equal(t, "projects/shop-prod/topics/sf-order-events", c.resourceName("topics", " sf-order-events "))
	assert.Empty(t, c.resourceName("topics", ""))

	var nilClient *Client
	assert.Empty(t, nilClient.resourceName("subscriptions", "sf-orders"))
	assert.Nil(t, nilClient.Publisher("sf-order-events"))
	assert.Nil(t, nilClient.Subscriber("sf-orders"))
	assert.ErrorIs(t, nilClient.Ping(context.Background()), errNotInitialized)
	assert.NoError(t, nilClient.Close())
}
