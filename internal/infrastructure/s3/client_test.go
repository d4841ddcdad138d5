package s3infra

import (
	"context"
	"errors"
	"testing"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/aws/aws-sdk-go-v2/service/s3/types"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

type mockS3 struct{ mock.Mock }

func (m *mockS3) ListObjectsV2(ctx context.Context, in *s3.ListObjectsV2Input, _ ...func(*s3.Options)) (*s3.ListObjectsV2Output, error) {
	args := m.Called(ctx, in)
	out, _ := args.Get(0).(*s3.ListObjectsV2Output)
	return out, args.Error(1)
}

func (m *mockS3) DeleteObjects(ctx context.Context, in *s3.DeleteObjectsInput, _ ...func(*s3.Options)) (*s3.DeleteObjectsOutput, error) {
	args := m.Called(ctx, in)
	out, _ := args.Get(0).(*s3.DeleteObjectsOutput)
	return out, args.Error(1)
}

func TestUserPrefix(t *testing.T) {
	assert.Equal(t, "users/user_1/", UserPrefix("user_1"))
	assert.Equal(t, "users/user_1/", UserPrefix("/user_1/"))
}

func TestDeletePrefix_FollowsPages(t *testing.T) {
	api := &mockS3{}
	api.On("ListObjectsV2", mock.Anything, mock.MatchedBy(func(in *s3.ListObjectsV2Input) bool {
		return in.ContinuationToken == nil && aws.ToString(in.Prefix) == "users/u1/"
	})).Return(&s3.ListObjectsV2Output{
		Contents:              []types.Object{{Key: aws.String("users/u1/a.png")}, {Key: aws.String("users/u1/b.png")}},
		IsTruncated:           aws.Bool(true),
		NextContinuationToken: aws.String("next"),
	}, nil).Once()
	api.On("ListObjectsV2", mock.Anything, mock.MatchedBy(func(in *s3.ListObjectsV2Input) bool {
		return aws.ToString(in.ContinuationToken) == "next"
	})).Return(&s3.ListObjectsV2Output{
		Contents:    []types.Object{{Key: aws.String("users/u1/c.png")}},
		IsTruncated: aws.Bool(false),
	}, nil).Once()
	api.On("DeleteObjects", mock.Anything, mock.Anything).Return(&s3.DeleteObjectsOutput{}, nil).Twice()

	n, err := (&MediaStore{client: api, bucket: "media"}).DeletePrefix(context.Background(), "users/u1/")

	require.NoError(t, err)
	assert.Equal(t, 3, n)
	api.AssertExpectations(t)
}

func TestDeletePrefix_NothingToDelete(t *testing.T) {
	api := &mockS3{}
	api.On("ListObjectsV2", mock.Anything, mock.Anything).Return(&s3.ListObjectsV2Output{}, nil)

	n, err := (&MediaStore{client: api, bucket: "media"}).DeletePrefix(context.Background(), "users/u1/")

	require.NoError(t, err)
	assert.Zero(t, n)
	api.AssertNotCalled(t, "DeleteObjects", mock.Anything, mock.Anything)
}

func TestDeletePrefix_RejectsEmptyPrefix(t *testing.T) {
	_, err := (&MediaStore{client: &mockS3{}, bucket: "media"}).DeletePrefix(context.Background(), "")
	assert.Error(t, err)
}

func TestDeletePrefix_ListError(t *testing.T) {
	api := &mockS3{}
	api.On("ListObjectsV2", mock.Anything, mock.Anything).Return(nil, errors.New("denied"))

	_, err := (&MediaStore{client: api, bucket: "media"}).DeletePrefix(context.Background(), "users/u1/")

	assert.ErrorContains(t, err, "denied")
}
