// Package pubsub wraps the Pub/Sub v2 client. Each process declares the
// topics and subscriptions it depends on; those are checked at start-up and
// on every readiness ping.
package pubsub

import (
	"context"
	"errors"
	"fmt"
	"strings"

	pubsub "cloud.google.com/go/pubsub/v2"
	"cloud.google.com/go/pubsub/v2/apiv1/pubsubpb"
	"google.golang.org/api/option"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"

	"github.com/angelmondragon/storefront-backend/pkg/config"
	"github.com/angelmondragon/storefront-backend/pkg/logger"
)

var (
	errProjectIDRequired = errors.New("gcp project id is required")
	errNothingRequired   = errors.New("at least one topic or subscription is required")
	errNotInitialized    = errors.New("pubsub client not initialized")
)

// Resources lists the topic and subscription ids a process relies on.
type Resources struct {
	Topics        []string
	Subscriptions []string
}

// PublisherResources covers the outbox publisher's topics.
func PublisherResources(cfg config.PubSubConfig) Resources {
	return Resources{Topics: compact(cfg.OrdersTopic, cfg.NotificationTopic)}
}

func AnalyticsResources(cfg config.PubSubConfig) Resources {
	return Resources{Subscriptions: compact(cfg.OrdersSubscription)}
}

func MailerResources(cfg config.PubSubConfig) Resources {
	return Resources{Subscriptions: compact(cfg.NotificationSubscription)}
}

func compact(names ...string) []string {
	var out []string
	for _, n := range names {
		if n = strings.TrimSpace(n); n != "" {
			out = append(out, n)
		}
	}
	return out
}

type Client struct {
	ps      *pubsub.Client
	project string
	cfg     config.PubSubConfig
	needs   Resources
}

func NewClient(ctx context.Context, gcp config.GCPConfig, cfg config.PubSubConfig, needs Resources, logg *logger.Logger) (*Client, error) {
	project := strings.TrimSpace(gcp.ProjectID)
	if project == "" {
		return nil, errProjectIDRequired
	}
	if len(needs.Topics) == 0 && len(needs.Subscriptions) == 0 {
		return nil, errNothingRequired
	}

	ps, err := pubsub.NewClient(ctx, project, clientOptions(gcp)...)
	if err != nil {
		return nil, fmt.Errorf("creating pubsub client: %w", err)
	}
	c := &Client{ps: ps, project: project, cfg: cfg, needs: needs}
	if err := c.Ping(ctx); err != nil {
		_ = ps.Close()
		return nil, err
	}

	if logg != nil {
		logg.Info(logg.WithFields(ctx, map[string]any{
			"topics":        needs.Topics,
			"subscriptions": needs.Subscriptions,
		}), "pubsub client initialized")
	}
	return c, nil
}

func clientOptions(gcp config.GCPConfig) []option.ClientOption {
	if creds := strings.TrimSpace(gcp.CredentialsJSON); creds != "" {
		return []option.ClientOption{option.WithCredentialsJSON([]byte(creds))}
	}
	if path := strings.TrimSpace(gcp.ApplicationCredentials); path != "" {
		return []option.ClientOption{option.WithCredentialsFile(path)}
	}
	return nil
}

// Ping checks that every declared topic and subscription exists.
func (c *Client) Ping(ctx context.Context) error {
	if c == nil || c.ps == nil {
		return errNotInitialized
	}
	for _, topic := range c.needs.Topics {
		_, err := c.ps.TopicAdminClient.GetTopic(ctx, &pubsubpb.GetTopicRequest{Topic: c.resourceName("topics", topic)})
		if err != nil {
			return describe("topic", topic, err)
		}
	}
	for _, sub := range c.needs.Subscriptions {
		_, err := c.ps.SubscriptionAdminClient.GetSubscription(ctx, &pubsubpb.GetSubscriptionRequest{Subscription: c.resourceName("subscriptions", sub)})
		if err != nil {
			return describe("subscription", sub, err)
		}
	}
	return nil
}

func describe(kind, name string, err error) error {
	if status.Code(err) == codes.NotFound {
		return fmt.Errorf("%s %q does not exist", kind, name)
	}
	return fmt.Errorf("checking %s %q: %w", kind, name, err)
}

// Subscriber returns a receiver for name with flow control applied.
func (c *Client) Subscriber(name string) *pubsub.Subscriber {
	full := c.resourceName("subscriptions", name)
	if c == nil || c.ps == nil || full == "" {
		return nil
	}
	sub := c.ps.Subscriber(full)
	if c.cfg.MaxOutstanding > 0 {
		sub.ReceiveSettings.MaxOutstandingMessages = c.cfg.MaxOutstanding
	}
	return sub
}

func (c *Client) OrdersSubscription() *pubsub.Subscriber {
	return c.Subscriber(c.cfg.OrdersSubscription)
}

func (c *Client) NotificationSubscription() *pubsub.Subscriber {
	return c.Subscriber(c.cfg.NotificationSubscription)
}

// Publisher accepts a topic id or a full resource name.
func (c *Client) Publisher(name string) *pubsub.Publisher {
	full := c.resourceName("topics", name)
	if c == nil || c.ps == nil || full == "" {
		return nil
	}
	return c.ps.Publisher(full)
}

func (c *Client) Close() error {
	if c == nil || c.ps == nil {
		return nil
	}
	return c.ps.Close()
}

// resourceName expands an id to projects/<project>/<collection>/<id>. Full
// names pass through unchanged.
func (c *Client) resourceName(collection, name string) string {
	name = strings.TrimSpace(name)
	if c == nil || name == "" {
		return ""
	}
	if strings.HasPrefix(name, "projects/") && strings.Contains(name, "/"+collection+"/") {
		return name
	}
	if c.project == "" {
		return ""
	}
	return "projects/" + c.project + "/" + collection + "/" + name
}
