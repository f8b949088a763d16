package storage

import (
	"bytes"
	"context"
	"io"
	"testing"

	"github.com/aws/aws-sdk-go/aws"
	"github.com/aws/aws-sdk-go/aws/awserr"
	"github.com/aws/aws-sdk-go/aws/request"
	"github.com/aws/aws-sdk-go/service/s3"
	"github.com/aws/aws-sdk-go/service/s3/s3iface"
	"github.com/ruteri/keymaster/interfaces"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

// MockS3Client stubs the S3 calls the store makes.
type MockS3Client struct {
	s3iface.S3API
	mock.Mock
}

func (m *MockS3Client) GetObjectWithContext(ctx aws.Context, in *s3.GetObjectInput, _ ...request.Option) (*s3.GetObjectOutput, error) {
	args := m.Called(aws.StringValue(in.Key))
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*s3.GetObjectOutput), args.Error(1)
}

func (m *MockS3Client) PutObjectWithContext(ctx aws.Context, in *s3.PutObjectInput, _ ...request.Option) (*s3.PutObjectOutput, error) {
	body, _ := io.ReadAll(in.Body)
	args := m.Called(aws.StringValue(in.Key), body, aws.StringValue(in.ACL))
	return &s3.PutObjectOutput{}, args.Error(0)
}

func (m *MockS3Client) HeadObjectWithContext(ctx aws.Context, in *s3.HeadObjectInput, _ ...request.Option) (*s3.HeadObjectOutput, error) {
	args := m.Called(aws.StringValue(in.Key))
	return &s3.HeadObjectOutput{}, args.Error(0)
}

func (m *MockS3Client) DeleteObjectWithContext(ctx aws.Context, in *s3.DeleteObjectInput, _ ...request.Option) (*s3.DeleteObjectOutput, error) {
	args := m.Called(aws.StringValue(in.Key))
	return &s3.DeleteObjectOutput{}, args.Error(0)
}

func (m *MockS3Client) HeadBucketWithContext(ctx aws.Context, in *s3.HeadBucketInput, _ ...request.Option) (*s3.HeadBucketOutput, error) {
	args := m.Called(aws.StringValue(in.Bucket))
	return &s3.HeadBucketOutput{}, args.Error(0)
}

func newTestS3Store(client *MockS3Client) *S3Store {
	return newS3StoreWithClient(client, S3StoreConfig{
		Bucket: "keys",
		Prefix: "/prod/",
		Region: "eu-west-1",
	}, quietLogger())
}

const testObjectKey = "prod/com.example.app%2FMasterKey/alice"

func TestS3Store_Get(t *testing.T) {
	ctx := context.Background()

	client := &MockS3Client{}
	client.On("GetObjectWithContext", testObjectKey).Return(&s3.GetObjectOutput{
		Body: io.NopCloser(bytes.NewReader([]byte("payload"))),
	}, nil).Once()
	client.On("GetObjectWithContext", testObjectKey).Return(nil,
		awserr.New(s3.ErrCodeNoSuchKey, "The specified key does not exist.", nil)).Once()
	client.On("GetObjectWithContext", testObjectKey).Return(nil,
		awserr.New("AccessDenied", "Access Denied", nil)).Once()

	store := newTestS3Store(client)

	data, err := store.Get(ctx, testItemID, testAccount)
	require.NoError(t, err)
	assert.Equal(t, []byte("payload"), data)

	_, err = store.Get(ctx, testItemID, testAccount)
	assert.ErrorIs(t, err, interfaces.ErrItemNotFound)

	_, err = store.Get(ctx, testItemID, testAccount)
	assert.ErrorIs(t, err, interfaces.ErrStoreUnavailable)

	client.AssertExpectations(t)
}

func TestS3Store_PutIsPrivate(t *testing.T) {
	client := &MockS3Client{}
	client.On("PutObjectWithContext", testObjectKey, []byte("payload"), s3.ObjectCannedACLPrivate).Return(nil)

	require.NoError(t, newTestS3Store(client).Put(context.Background(), testItemID, testAccount, []byte("payload")))
	client.AssertExpectations(t)
}

func TestS3Store_Delete(t *testing.T) {
	ctx := context.Background()
	notFound := awserr.NewRequestFailure(awserr.New("NotFound", "Not Found", nil), 404, "req-1")

	client := &MockS3Client{}
	client.On("HeadObjectWithContext", testObjectKey).Return(nil).Once()
	client.On("DeleteObjectWithContext", testObjectKey).Return(nil).Once()
	client.On("HeadObjectWithContext", testObjectKey).Return(notFound).Once()

	store := newTestS3Store(client)
	require.NoError(t, store.Delete(ctx, testItemID, testAccount))
	assert.ErrorIs(t, store.Delete(ctx, testItemID, testAccount), interfaces.ErrItemNotFound)

	client.AssertExpectations(t)
	client.AssertNumberOfCalls(t, "DeleteObjectWithContext", 1)
}

func TestS3Store_Available(t *testing.T) {
	client := &MockS3Client{}
	client.On("HeadBucketWithContext", "keys").Return(nil).Once()
	client.On("HeadBucketWithContext", "keys").Return(awserr.New("Forbidden", "Forbidden", nil)).Once()

	store := newTestS3Store(client)
	assert.True(t, store.Available(context.Background()))
	assert.False(t, store.Available(context.Background()))
	assert.Equal(t, "s3-keys", store.Name())
	assert.Equal(t, "s3://keys/prod?region=eu-west-1", store.LocationURI())
}
