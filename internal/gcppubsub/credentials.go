package gcppubsub

import (
	"context"
	"errors"
	"fmt"
	"os"

	"cloud.google.com/go/pubsub"
	"golang.org/x/oauth2/google"
	"google.golang.org/api/option"
	"google.golang.org/grpc"
	"google.golang.org/grpc/credentials/insecure"
)

// ErrNoCredentials is returned by Validate when neither Google credentials
// nor an emulator endpoint are configured.
var ErrNoCredentials = errors.New("no google credentials or emulator endpoint configured")

// Credentials authenticates a Pub/Sub client.
type Credentials struct {
	google   *google.Credentials
	emulator string
}

// CredentialsFromJSON builds credentials from a service account or
// authorized user JSON document.
func CredentialsFromJSON(ctx context.Context, data []byte) (*Credentials, error) {
	creds, err := google.CredentialsFromJSON(ctx, data, pubsub.ScopePubSub)
	if err != nil {
		return nil, fmt.Errorf("failed to parse google credentials: %w", err)
	}
	return &Credentials{google: creds}, nil
}

// CredentialsFromFile reads a credentials JSON file.
func CredentialsFromFile(ctx context.Context, path string) (*Credentials, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read credentials file %s: %w", path, err)
	}
	return CredentialsFromJSON(ctx, data)
}

// DefaultCredentials resolves Application Default Credentials.
func DefaultCredentials(ctx context.Context) (*Credentials, error) {
	creds, err := google.FindDefaultCredentials(ctx, pubsub.ScopePubSub)
	if err != nil {
		return nil, fmt.Errorf("failed to find default google credentials: %w", err)
	}
	return &Credentials{google: creds}, nil
}

// EmulatorCredentials targets an unauthenticated Pub/Sub emulator at host.
func EmulatorCredentials(host string) *Credentials {
	return &Credentials{emulator: host}
}

// Validate checks that the credentials can be used to build a client.
func (c *Credentials) Validate(_ context.Context) error {
	if c == nil || (c.google == nil && c.emulator == "") {
		return ErrNoCredentials
	}
	return nil
}

// ProjectID returns the project embedded in the credentials, if any.
func (c *Credentials) ProjectID() string {
	if c == nil || c.google == nil {
		return ""
	}
	return c.google.ProjectID
}

// ClientOptions returns the options passed to pubsub.NewClient.
func (c *Credentials) ClientOptions() []option.ClientOption {
	if c.emulator != "" {
		return []option.ClientOption{
			option.WithEndpoint(c.emulator),
			option.WithoutAuthentication(),
			option.WithGRPCDialOption(grpc.WithTransportCredentials(insecure.NewCredentials())),
		}
	}
	return []option.ClientOption{option.WithCredentials(c.google)}
}
