package upload

import (
	"context"
	"errors"
	"io"
	"strings"
	"testing"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/feature/s3/manager"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/simplegpt/backend/internal/apperr"
	"github.com/simplegpt/backend/internal/config"
)

type fakeUploader struct {
	input *s3.PutObjectInput
	body  string
	err   error
}

func (f *fakeUploader) Upload(_ context.Context, input *s3.PutObjectInput, _ ...func(*manager.Uploader)) (*manager.UploadOutput, error) {
	f.input = input
	data, _ := io.ReadAll(input.Body)
	f.body = string(data)
	if f.err != nil {
		return nil, f.err
	}
	return &manager.UploadOutput{Location: "https://bucket.example.com/" + aws.ToString(input.Key)}, nil
}

func testConfig() config.UploadConfig {
	return config.UploadConfig{Bucket: "images", KeyPrefix: "simplegpt", MaxBytes: 1 << 20}
}

func TestUpload(t *testing.T) {
	up := &fakeUploader{}
	svc := NewService(up, testConfig())
	svc.newID = func() string { return "0000-1111" }

	got, err := svc.Upload(context.Background(), "Cat.PNG", "image/png", strings.NewReader("pixels"))
	require.NoError(t, err)

	assert.Equal(t, "0000-1111.png", got.Name)
	assert.Equal(t, "https://bucket.example.com/simplegpt/0000-1111.png", got.URL)
	assert.Equal(t, "images", aws.ToString(up.input.Bucket))
	assert.Equal(t, "image/png", aws.ToString(up.input.ContentType))
	assert.Equal(t, "pixels", up.body)
}

func TestUploadDisabled(t *testing.T) {
	svc := NewService(nil, testConfig())
	assert.False(t, svc.Enabled())

	_, err := svc.Upload(context.Background(), "a.png", "", strings.NewReader("x"))
	assert.ErrorIs(t, err, apperr.UploadNotConfigured)
}

func TestUploadFailure(t *testing.T) {
	svc := NewService(&fakeUploader{err: errors.New("AccessDenied")}, testConfig())

	_, err := svc.Upload(context.Background(), "a.png", "", strings.NewReader("x"))
	assert.ErrorIs(t, err, apperr.UploadFailed)
	assert.Equal(t, apperr.CodeS3API, apperr.As(err, apperr.BadRequest).Code)
}
