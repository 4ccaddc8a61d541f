package objectstore

import (
	"context"
	"errors"
	"io"
	"net/http"
	"testing"
	"time"

	v4 "github.com/aws/aws-sdk-go-v2/aws/signer/v4"
	awshttp "github.com/aws/aws-sdk-go-v2/aws/transport/http"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/aws/smithy-go"
	smithyhttp "github.com/aws/smithy-go/transport/http"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"letterpod/internal/services"
)

type fakePut struct {
	input *s3.PutObjectInput
	body  []byte
	err   error
}

func (f *fakePut) PutObject(_ context.Context, params *s3.PutObjectInput, _ ...func(*s3.Options)) (*s3.PutObjectOutput, error) {
	if f.err != nil {
		return nil, f.err
	}
	f.input = params
	data, err := io.ReadAll(params.Body)
	if err != nil {
		return nil, err
	}
	f.body = data
	return &s3.PutObjectOutput{}, nil
}

type fakePresign struct {
	expires time.Duration
	key     string
}

func (f *fakePresign) PresignGetObject(_ context.Context, params *s3.GetObjectInput, optFns ...func(*s3.PresignOptions)) (*v4.PresignedHTTPRequest, error) {
	opts := &s3.PresignOptions{}
	for _, fn := range optFns {
		fn(opts)
	}
	f.expires = opts.Expires
	f.key = *params.Key
	return &v4.PresignedHTTPRequest{URL: "https://bucket.s3.example/" + *params.Key + "?X-Amz-Signature=abc", Method: http.MethodGet}, nil
}

func TestUploadPutsAndPresigns(t *testing.T) {
	put := &fakePut{}
	presign := &fakePresign{}
	store := newWithAPI(Config{Bucket: "episodes", Prefix: "/daily/"}, put, presign)
	issued := time.Date(2025, 3, 11, 6, 0, 0, 0, time.UTC)
	store.now = func() time.Time { return issued }

	link, err := store.Upload(context.Background(), "newsletter-podcast-2025-03-11.mp3", []byte("audio"), "audio/mpeg", 48*time.Hour)
	require.NoError(t, err)

	require.NotNil(t, put.input)
	assert.Equal(t, "episodes", *put.input.Bucket)
	assert.Equal(t, "daily/newsletter-podcast-2025-03-11.mp3", *put.input.Key)
	assert.Equal(t, "audio/mpeg", *put.input.ContentType)
	assert.Equal(t, int64(5), *put.input.ContentLength)
	assert.Equal(t, "audio", string(put.body))

	assert.Equal(t, 48*time.Hour, presign.expires)
	assert.Equal(t, "daily/newsletter-podcast-2025-03-11.mp3", presign.key)
	assert.Equal(t, "daily/newsletter-podcast-2025-03-11.mp3", link.Key)
	assert.Contains(t, link.URL, "X-Amz-Signature")
	assert.Equal(t, issued.Add(48*time.Hour), link.Expires)
}

func TestUploadClassifiesFailures(t *testing.T) {
	cases := []struct {
		name string
		err  error
		want services.Kind
	}{
		{"too large", &smithy.GenericAPIError{Code: "EntityTooLarge", Message: "too big"}, services.KindConstraint},
		{"missing bucket", &smithy.GenericAPIError{Code: "NoSuchBucket"}, services.KindFatal},
		{"slow down", &smithy.GenericAPIError{Code: "SlowDown"}, services.KindTransient},
		{"server error", responseError(http.StatusServiceUnavailable), services.KindTransient},
		{"forbidden", responseError(http.StatusForbidden), services.KindFatal},
		{"network", errors.New("dial tcp: connection refused"), services.KindTransient},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			store := newWithAPI(Config{Bucket: "episodes"}, &fakePut{err: tc.err}, &fakePresign{})
			_, err := store.Upload(context.Background(), "x.mp3", []byte("a"), "", time.Hour)
			require.Error(t, err)
			assert.Equal(t, tc.want, services.Classify(err))
		})
	}
}

func TestForbiddenIsConfiguration(t *testing.T) {
	err := classify("upload", responseError(http.StatusForbidden))
	assert.ErrorIs(t, err, services.ErrConfiguration)
}

func TestNewRequiresBucket(t *testing.T) {
	_, err := New(context.Background(), Config{})
	require.Error(t, err)
	assert.ErrorIs(t, err, services.ErrConfiguration)
}

func responseError(status int) error {
	return &awshttp.ResponseError{
		ResponseError: &smithyhttp.ResponseError{
			Response: &smithyhttp.Response{Response: &http.Response{StatusCode: status}},
			Err:      errors.New("http error"),
		},
		RequestID: "req-1",
	}
}
