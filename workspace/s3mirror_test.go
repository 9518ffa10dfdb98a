package workspace

import (
	"bytes"
	"context"
	"errors"
	"io"
	"testing"

	"github.com/aws/aws-sdk-go-v2/service/s3"
	s3types "github.com/aws/aws-sdk-go-v2/service/s3/types"
)

// fakeS3 is an in-memory s3API.
type fakeS3 struct {
	objects map[string][]byte
	getErr  error
	putErr  error
}

func newFakeS3() *fakeS3 {
	return &fakeS3{objects: map[string][]byte{}}
}

func (f *fakeS3) GetObject(_ context.Context, in *s3.GetObjectInput, _ ...func(*s3.Options)) (*s3.GetObjectOutput, error) {
	if f.getErr != nil {
		return nil, f.getErr
	}
	data, ok := f.objects[*in.Key]
	if !ok {
		return nil, &s3types.NoSuchKey{}
	}
	return &s3.GetObjectOutput{Body: io.NopCloser(bytes.NewReader(data))}, nil
}

func (f *fakeS3) PutObject(_ context.Context, in *s3.PutObjectInput, _ ...func(*s3.Options)) (*s3.PutObjectOutput, error) {
	if f.putErr != nil {
		return nil, f.putErr
	}
	data, err := io.ReadAll(in.Body)
	if err != nil {
		return nil, err
	}
	f.objects[*in.Key] = data
	return &s3.PutObjectOutput{}, nil
}

func TestMirror_FetchMissIsNotError(t *testing.T) {
	m := NewMirrorWithClient(newFakeS3(), MirrorConfig{Bucket: "b"})

	data, ok, err := m.Fetch(t.Context(), AppKey("d", "a"))
	if err != nil {
		t.Fatalf("fetch: %v", err)
	}
	if ok || data != nil {
		t.Errorf("miss returned (%v, %v), want (nil, false)", data, ok)
	}
}

func TestMirror_StoreThenFetch(t *testing.T) {
	fake := newFakeS3()
	m := NewMirrorWithClient(fake, MirrorConfig{Bucket: "b", Prefix: "formward"})

	key := RestoreKey("d", "a", "u")
	if err := m.Store(t.Context(), key, []byte("<restore/>")); err != nil {
		t.Fatalf("store: %v", err)
	}

	// Prefix is applied to the stored key.
	if _, ok := fake.objects["formward/d/a/users/u/restore.xml"]; !ok {
		t.Fatalf("stored keys = %v", fake.objects)
	}

	data, ok, err := m.Fetch(t.Context(), key)
	if err != nil {
		t.Fatalf("fetch: %v", err)
	}
	if !ok || string(data) != "<restore/>" {
		t.Errorf("fetch = (%q, %v)", data, ok)
	}
}

func TestMirror_FetchErrorPropagates(t *testing.T) {
	fake := newFakeS3()
	fake.getErr = errors.New("connection refused")
	m := NewMirrorWithClient(fake, MirrorConfig{Bucket: "b"})

	_, _, err := m.Fetch(t.Context(), "k")
	if err == nil {
		t.Fatal("expected error")
	}
}

func TestMirrorConfig_Validate(t *testing.T) {
	if err := (&MirrorConfig{}).Validate(); err == nil {
		t.Error("empty bucket must fail validation")
	}
	if err := (&MirrorConfig{Bucket: "b"}).Validate(); err != nil {
		t.Errorf("validate: %v", err)
	}
}

func TestKeys(t *testing.T) {
	if got := AppKey("d", "a"); got != "d/a/app.ccz" {
		t.Errorf("AppKey = %q", got)
	}
	if got := RestoreKey("d", "a", "u"); got != "d/a/users/u/restore.xml" {
		t.Errorf("RestoreKey = %q", got)
	}
}
