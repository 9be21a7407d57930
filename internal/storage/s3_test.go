package storage

import (
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type recordedRequest struct {
	method      string
	path        string
	query       url.Values
	contentType string
}

type fakeS3 struct {
	mu       sync.Mutex
	requests []recordedRequest
	listBody string
}

func (f *fakeS3) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	_, _ = io.Copy(io.Discard, r.Body)
	f.mu.Lock()
	f.requests = append(f.requests, recordedRequest{
		method:      r.Method,
		path:        r.URL.Path,
		query:       r.URL.Query(),
		contentType: r.Header.Get("Content-Type"),
	})
	f.mu.Unlock()

	switch {
	case r.Method == http.MethodGet && r.URL.Query().Get("list-type") == "2":
		w.Header().Set("Content-Type", "application/xml")
		_, _ = io.WriteString(w, f.listBody)
	case r.Method == http.MethodPost && r.URL.Query().Has("delete"):
		w.Header().Set("Content-Type", "application/xml")
		_, _ = io.WriteString(w, `<?xml version="1.0" encoding="UTF-8"?><DeleteResult></DeleteResult>`)
	default:
		w.Header().Set("ETag", `"etag"`)
		w.WriteHeader(http.StatusOK)
	}
}

func newTestS3(t *testing.T, endpoint string) *S3Service {
	t.Helper()
	client := s3.New(s3.Options{
		Region:       "us-east-1",
		Credentials:  credentials.NewStaticCredentialsProvider("AKIDEXAMPLE", "secret", ""),
		BaseEndpoint: aws.String(endpoint),
		UsePathStyle: true,
	})
	return NewS3Service(client)
}

func TestS3Service_UploadObject(t *testing.T) {
	fake := &fakeS3{}
	srv := httptest.NewServer(fake)
	defer srv.Close()

	svc := newTestS3(t, srv.URL)
	loc, err := svc.UploadObject(context.Background(), "/event-images/events/e1/cover.png", strings.NewReader("png-bytes"), UploadOptions{
		Bucket:      "media",
		ContentType: "image/png",
	})
	require.NoError(t, err)
	assert.Equal(t, "s3://media/event-images/events/e1/cover.png", loc)

	require.NotEmpty(t, fake.requests)
	req := fake.requests[0]
	assert.Equal(t, http.MethodPut, req.method)
	assert.Equal(t, "/media/event-images/events/e1/cover.png", req.path)
	assert.Equal(t, "image/png", req.contentType)
}

func TestS3Service_UploadObjectValidation(t *testing.T) {
	svc := newTestS3(t, "http://127.0.0.1:1")

	_, err := svc.UploadObject(context.Background(), "k", strings.NewReader(""), UploadOptions{})
	assert.Error(t, err)

	_, err = svc.UploadObject(context.Background(), "/", strings.NewReader(""), UploadOptions{Bucket: "b"})
	assert.Error(t, err)
}

func TestS3Service_DeletePrefix(t *testing.T) {
	fake := &fakeS3{listBody: `<?xml version="1.0" encoding="UTF-8"?>
<ListBucketResult xmlns="http://s3.amazonaws.com/doc/2006-03-01/">
	<Name>media</Name>
	<Prefix>events/e1/</Prefix>
	<KeyCount>2</KeyCount>
	<IsTruncated>false</IsTruncated>
	<Contents><Key>events/e1/a.png</Key><Size>3</Size></Contents>
	<Contents><Key>events/e1/b.png</Key><Size>4</Size></Contents>
</ListBucketResult>`}
	srv := httptest.NewServer(fake)
	defer srv.Close()

	svc := newTestS3(t, srv.URL)
	require.NoError(t, svc.DeletePrefix(context.Background(), "media", "events/e1/"))

	require.Len(t, fake.requests, 2)
	assert.Equal(t, http.MethodGet, fake.requests[0].method)
	assert.Equal(t, "events/e1/", fake.requests[0].query.Get("prefix"))
	assert.Equal(t, http.MethodPost, fake.requests[1].method)
	assert.True(t, fake.requests[1].query.Has("delete"))

	assert.Error(t, svc.DeletePrefix(context.Background(), "media", " "))
	assert.Error(t, svc.DeletePrefix(context.Background(), "", "events/"))
}

func TestS3Service_GetObjectURL(t *testing.T) {
	svc := newTestS3(t, "http://s3.local")

	raw, err := svc.GetObjectURL(context.Background(), "media", "events/e1/a.png", 15*time.Minute)
	require.NoError(t, err)

	u, err := url.Parse(raw)
	require.NoError(t, err)
	assert.Equal(t, "s3.local", u.Host)
	assert.Equal(t, "/media/events/e1/a.png", u.Path)
	assert.Equal(t, "900", u.Query().Get("X-Amz-Expires"))
	assert.NotEmpty(t, u.Query().Get("X-Amz-Signature"))

	_, err = svc.GetObjectURL(context.Background(), "", "k", time.Minute)
	assert.Error(t, err)
}
