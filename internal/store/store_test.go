package store_test

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"sync"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/ncw/swift"
	"github.com/ncw/swift/swifttest"

	"github.com/petii/mp3-magic-machine/internal/config"
	. "github.com/petii/mp3-magic-machine/internal/store"

	. "github.com/onsi/ginkgo"
	. "github.com/onsi/gomega"
)

// fakeS3 serves path-style GetObject and PutObject
type fakeS3 struct {
	mu           sync.Mutex
	objects      map[string][]byte
	contentTypes map[string]string
}

func (f *fakeS3) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	f.mu.Lock()
	defer f.mu.Unlock()

	switch r.Method {
	case http.MethodPut:
		data, err := io.ReadAll(r.Body)
		if err != nil {
			w.WriteHeader(http.StatusInternalServerError)
			return
		}
		f.objects[r.URL.Path] = data
		f.contentTypes[r.URL.Path] = r.Header.Get("Content-Type")
		w.WriteHeader(http.StatusOK)
	case http.MethodGet:
		data, ok := f.objects[r.URL.Path]
		if !ok {
			w.Header().Set("Content-Type", "application/xml")
			w.WriteHeader(http.StatusNotFound)
			fmt.Fprint(w, `<?xml version="1.0" encoding="UTF-8"?><Error><Code>NoSuchKey</Code><Message>The specified key does not exist.</Message></Error>`)
			return
		}
		w.Header().Set("Content-Length", fmt.Sprint(len(data)))
		w.Write(data)
	default:
		w.WriteHeader(http.StatusMethodNotAllowed)
	}
}

func readAll(rc io.ReadCloser) []byte {
	defer rc.Close()
	data, err := io.ReadAll(rc)
	Expect(err).To(BeNil())
	return data
}

var _ = Describe("Store", func() {
	var ctx context.Context

	BeforeEach(func() {
		ctx = context.Background()
	})

	Describe("MemoryStore", func() {
		var mem *MemoryStore

		BeforeEach(func() {
			mem = NewMemoryStore()
		})

		Context("When the object exists", func() {
			It("Returns its content and counts the call", func() {
				mem.Add("bucket", "in.wav", []byte("RIFF"))

				body, err := mem.Get(ctx, "bucket", "in.wav")
				Expect(err).To(BeNil())
				Expect(readAll(body)).To(Equal([]byte("RIFF")))

				gets, puts := mem.Stats()
				Expect(gets).To(Equal(1))
				Expect(puts).To(Equal(0))
			})
		})

		Context("When the object is missing", func() {
			It("Returns ErrNotFound", func() {
				_, err := mem.Get(ctx, "bucket", "nope.wav")
				Expect(errors.Is(err, ErrNotFound)).To(BeTrue())
			})
		})

		Context("When putting objects", func() {
			It("Stores content and content type", func() {
				err := mem.Put(ctx, "out", "b/x.mp3", bytes.NewReader([]byte("ID3")), 3, ContentTypeMP3)
				Expect(err).To(BeNil())
				Expect(mem.Put(ctx, "out", "a.mp3", bytes.NewReader(nil), 0, ContentTypeMP3)).To(Succeed())

				data, contentType, ok := mem.Object("out", "b/x.mp3")
				Expect(ok).To(BeTrue())
				Expect(data).To(Equal([]byte("ID3")))
				Expect(contentType).To(Equal(ContentTypeMP3))
				Expect(mem.Keys("out")).To(Equal([]string{"a.mp3", "b/x.mp3"}))
			})

			It("Rejects a body that does not match the declared size", func() {
				err := mem.Put(ctx, "out", "x.mp3", bytes.NewReader([]byte("abc")), 10, ContentTypeMP3)
				Expect(err).ToNot(BeNil())
				_, _, ok := mem.Object("out", "x.mp3")
				Expect(ok).To(BeFalse())
			})
		})

		Context("When failures are injected", func() {
			It("Returns them from Get and Put", func() {
				boom := errors.New("boom")
				mem.Add("bucket", "in.wav", []byte("x"))
				mem.FailGets(boom)
				mem.FailPuts(boom)

				_, err := mem.Get(ctx, "bucket", "in.wav")
				Expect(err).To(Equal(boom))
				err = mem.Put(ctx, "bucket", "out", bytes.NewReader(nil), 0, ContentTypeZip)
				Expect(err).To(Equal(boom))

				mem.FailGets(nil)
				_, err = mem.Get(ctx, "bucket", "in.wav")
				Expect(err).To(BeNil())
			})
		})
	})

	Describe("PutFile", func() {
		It("Uploads a local file with its size", func() {
			dir, err := os.MkdirTemp("", "store-test")
			Expect(err).To(BeNil())
			defer os.RemoveAll(dir)

			path := filepath.Join(dir, "day.zip")
			Expect(os.WriteFile(path, []byte("PK\x03\x04"), 0o644)).To(Succeed())

			mem := NewMemoryStore()
			Expect(PutFile(ctx, mem, "bucket", "archive/day.zip", path, ContentTypeZip)).To(Succeed())

			data, contentType, ok := mem.Object("bucket", "archive/day.zip")
			Expect(ok).To(BeTrue())
			Expect(data).To(Equal([]byte("PK\x03\x04")))
			Expect(contentType).To(Equal(ContentTypeZip))
		})

		It("Fails for a missing file without calling the store", func() {
			mem := NewMemoryStore()
			err := PutFile(ctx, mem, "bucket", "k", "/nonexistent/file.zip", ContentTypeZip)
			Expect(err).ToNot(BeNil())
			_, puts := mem.Stats()
			Expect(puts).To(Equal(0))
		})
	})

	Describe("S3Store", func() {
		var (
			server *httptest.Server
			fake   *fakeS3
			s      *S3Store
		)

		BeforeEach(func() {
			fake = &fakeS3{objects: map[string][]byte{}, contentTypes: map[string]string{}}
			server = httptest.NewServer(fake)
			client := s3.New(s3.Options{
				Region:       "eu-central-1",
				BaseEndpoint: aws.String(server.URL),
				UsePathStyle: true,
				Credentials:  aws.AnonymousCredentials{},
			})
			s = NewS3Store(client)
		})

		AfterEach(func() {
			server.Close()
		})

		It("Round-trips an object", func() {
			payload := []byte("encoded frames")
			err := s.Put(ctx, "ppp-globalbucket-1", "uploads/a.mp3", bytes.NewReader(payload), int64(len(payload)), ContentTypeMP3)
			Expect(err).To(BeNil())
			Expect(fake.contentTypes["/ppp-globalbucket-1/uploads/a.mp3"]).To(Equal(ContentTypeMP3))

			body, err := s.Get(ctx, "ppp-globalbucket-1", "uploads/a.mp3")
			Expect(err).To(BeNil())
			Expect(readAll(body)).To(Equal(payload))
		})

		It("Maps NoSuchKey to ErrNotFound", func() {
			_, err := s.Get(ctx, "ppp-globalbucket-1", "missing.wav")
			Expect(errors.Is(err, ErrNotFound)).To(BeTrue())
		})
	})

	Describe("SwiftStore", func() {
		var (
			server *swifttest.SwiftServer
			s      *SwiftStore
		)

		BeforeEach(func() {
			var err error
			server, err = swifttest.NewSwiftServer("localhost")
			Expect(err).To(BeNil())

			conn := &swift.Connection{
				UserName: swifttest.TEST_ACCOUNT,
				ApiKey:   swifttest.TEST_ACCOUNT,
				AuthUrl:  server.AuthURL,
			}
			Expect(conn.Authenticate()).To(Succeed())
			s = NewSwiftStore(conn)
		})

		AfterEach(func() {
			server.Close()
		})

		It("Creates the container and round-trips an object", func() {
			payload := []byte("zip bytes")
			err := s.Put(ctx, "archive", "2024/03-07.zip", bytes.NewReader(payload), int64(len(payload)), ContentTypeZip)
			Expect(err).To(BeNil())

			body, err := s.Get(ctx, "archive", "2024/03-07.zip")
			Expect(err).To(BeNil())
			Expect(readAll(body)).To(Equal(payload))
		})

		It("Maps a missing object to ErrNotFound", func() {
			Expect(s.Put(ctx, "archive", "present", bytes.NewReader([]byte("x")), 1, ContentTypeZip)).To(Succeed())

			_, err := s.Get(ctx, "archive", "absent")
			Expect(errors.Is(err, ErrNotFound)).To(BeTrue())
		})

		It("Authenticates from configuration", func() {
			dialed, err := DialSwift(config.SwiftConfig{
				Username: swifttest.TEST_ACCOUNT,
				APIKey:   swifttest.TEST_ACCOUNT,
				AuthURL:  server.AuthURL,
			})
			Expect(err).To(BeNil())
			Expect(dialed).ToNot(BeNil())
		})

		It("Rejects an auth URL without a version", func() {
			_, err := DialSwift(config.SwiftConfig{AuthURL: "https://example.com/auth"})
			Expect(err).ToNot(BeNil())
		})
	})

	Describe("New", func() {
		It("Builds the memory backend", func() {
			s, err := New(ctx, config.StoreConfig{Backend: config.BackendMemory})
			Expect(err).To(BeNil())
			_, ok := s.(*MemoryStore)
			Expect(ok).To(BeTrue())
		})

		It("Rejects unknown backends", func() {
			_, err := New(ctx, config.StoreConfig{Backend: "ftp"})
			Expect(err).ToNot(BeNil())
		})
	})
})
