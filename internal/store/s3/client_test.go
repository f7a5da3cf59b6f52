package s3

import (
	"bytes"
	"context"
	"errors"
	"io"
	"testing"

	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/aws/aws-sdk-go-v2/service/s3/types"

	"github.com/maraichr/reviewlens/internal/store/blob"
)

type fakeAPI struct {
	objects map[string][]byte
	put     *s3.PutObjectInput
	putErr  error
}

func (f *fakeAPI) GetObject(ctx context.Context, in *s3.GetObjectInput, _ ...func(*s3.Options)) (*s3.GetObjectOutput, error) {
	data, ok := f.objects[*in.Key]
	if !ok {
		return nil, &types.NoSuchKey{}
	}
	return &s3.GetObjectOutput{Body: io.NopCloser(bytes.NewReader(data))}, nil
}

func (f *fakeAPI) PutObject(ctx context.Context, in *s3.PutObjectInput, _ ...func(*s3.Options)) (*s3.PutObjectOutput, error) {
	f.put = in
	if f.putErr != nil {
		return nil, f.putErr
	}
	return &s3.PutObjectOutput{}, nil
}

func TestGet(t *testing.T) {
	c := &Client{api: &fakeAPI{objects: map[string][]byte{"review/1.json": []byte("{}")}}, bucket: "b"}
	data, err := c.Get(context.Background(), "review/1.json")
	if err != nil {
		t.Fatal(err)
	}
	if string(data) != "{}" {
		t.Errorf("unexpected data %s", data)
	}
}

func TestGet_NoSuchKey(t *testing.T) {
	c := &Client{api: &fakeAPI{}, bucket: "b"}
	if _, err := c.Get(context.Background(), "missing.json"); !errors.Is(err, blob.ErrNotFound) {
		t.Errorf("expected ErrNotFound, got %v", err)
	}
}

func TestPut(t *testing.T) {
	api := &fakeAPI{}
	c := &Client{api: api, bucket: "reviews"}
	if err := c.Put(context.Background(), "embedding/1_embedding.json", []byte("{}"), "application/json"); err != nil {
		t.Fatal(err)
	}
	if *api.put.Bucket != "reviews" || *api.put.Key != "embedding/1_embedding.json" {
		t.Errorf("unexpected target %s/%s", *api.put.Bucket, *api.put.Key)
	}
	if *api.put.ContentType != "application/json" || *api.put.ContentLength != 2 {
		t.Errorf("unexpected put metadata %+v", api.put)
	}
}

func TestPut_Error(t *testing.T) {
	c := &Client{api: &fakeAPI{putErr: errors.New("denied")}, bucket: "b"}
	if err := c.Put(context.Background(), "k", nil, "application/json"); err == nil {
		t.Error("expected put error")
	}
}
