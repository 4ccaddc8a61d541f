// Package paramstore resolves "ssm:" credential references from AWS Systems
// Manager Parameter Store.
package paramstore

import (
	"context"
	"errors"
	"strings"
	"sync"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/ssm"
	"github.com/aws/aws-sdk-go-v2/service/ssm/types"

	"letterpod/internal/services"
)

// ssmAPI is the subset of *ssm.Client the resolver uses.
type ssmAPI interface {
	GetParameter(ctx context.Context, in *ssm.GetParameterInput, optFns ...func(*ssm.Options)) (*ssm.GetParameterOutput, error)
}

// Client resolves and caches decrypted parameters for the life of a process.
type Client struct {
	api ssmAPI

	mu    sync.Mutex
	cache map[string]string
}

// New wraps an SSM API implementation.
func New(api ssmAPI) (*Client, error) {
	if api == nil {
		return nil, services.Wrap(services.ErrConfiguration, "paramstore", "new", "api must not be nil", nil)
	}
	return &Client{api: api, cache: make(map[string]string)}, nil
}

// NewFromAWS loads the default AWS configuration chain.
func NewFromAWS(ctx context.Context, region, profile string) (*Client, error) {
	var opts []func(*awsconfig.LoadOptions) error
	if region != "" {
		opts = append(opts, awsconfig.WithRegion(region))
	}
	if profile != "" {
		opts = append(opts, awsconfig.WithSharedConfigProfile(profile))
	}
	cfg, err := awsconfig.LoadDefaultConfig(ctx, opts...)
	if err != nil {
		return nil, services.Wrap(services.ErrConfiguration, "paramstore", "new", "load aws config", err)
	}
	return New(ssm.NewFromConfig(cfg))
}

// Resolve returns the decrypted value of the named parameter.
func (c *Client) Resolve(ctx context.Context, name string) (string, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return "", services.Wrap(services.ErrValidation, "paramstore", "get", "name is required", nil)
	}
	c.mu.Lock()
	if v, ok := c.cache[name]; ok {
		c.mu.Unlock()
		return v, nil
	}
	c.mu.Unlock()

	out, err := c.api.GetParameter(ctx, &ssm.GetParameterInput{
		Name:           aws.String(name),
		WithDecryption: aws.Bool(true),
	})
	if err != nil {
		var notFound *types.ParameterNotFound
		if errors.As(err, &notFound) {
			return "", services.Wrap(services.ErrNotFound, "paramstore", "get", "parameter "+name+" does not exist", err)
		}
		return "", services.Wrap(services.ErrTransient, "paramstore", "get", "parameter "+name, err)
	}
	if out == nil || out.Parameter == nil || out.Parameter.Value == nil {
		return "", services.Wrap(services.ErrMalformed, "paramstore", "get", "parameter "+name+" missing value", nil)
	}
	value := *out.Parameter.Value
	c.mu.Lock()
	c.cache[name] = value
	c.mu.Unlock()
	return value, nil
}
