// Copyright (c) 2023 The KBase Project and its Contributors
// Copyright (c) 2023 Cohere Consulting, LLC
//
// Permission is hereby granted, free of charge, to any person obtaining a copy of
// this software and associated documentation files (the "Software"), to deal in
// the Software without restriction, including without limitation the rights to
// use, copy, modify, merge, publish, distribute, sublicense, and/or sell copies
// of the Software, and to permit persons to whom the Software is furnished to do
// so, subject to the following conditions:
//
// The above copyright notice and this permission notice shall be included in all
// copies or substantial portions of the Software.
//
// THE SOFTWARE IS PROVIDED "AS IS", WITHOUT WARRANTY OF ANY KIND, EXPRESS OR
// IMPLIED, INCLUDING BUT NOT LIMITED TO THE WARRANTIES OF MERCHANTABILITY,
// FITNESS FOR A PARTICULAR PURPOSE AND NONINFRINGEMENT. IN NO EVENT SHALL THE
// AUTHORS OR COPYRIGHT HOLDERS BE LIABLE FOR ANY CLAIM, DAMAGES OR OTHER
// LIABILITY, WHETHER IN AN ACTION OF CONTRACT, TORT OR OTHERWISE, ARISING FROM,
// OUT OF OR IN CONNECTION WITH THE SOFTWARE OR THE USE OR OTHER DEALINGS IN THE
// SOFTWARE.

package transput

import (
	"context"
	"errors"
	"fmt"
	"net/url"
	"os"
	"strings"

	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	s3types "github.com/aws/aws-sdk-go-v2/service/s3/types"

	"github.com/elixir-cloud-aai/taskmaster/core"
)

// s3Transput moves files and directories to and from an S3-compatible
// object store. Unlike FTP there is no persistent session to own: a fresh
// client is cheap, so Close is a no-op.
type s3Transput struct {
	client *s3.Client
	bucket string
	object string
}

func newS3Transput(ctx context.Context, parsed *url.URL) (*s3Transput, error) {
	bucket, object, err := bucketAndObject(parsed.Path)
	if err != nil {
		return nil, err
	}

	endpoint := "http://" + parsed.Host
	opts := []func(*awsconfig.LoadOptions) error{
		awsconfig.WithRegion("us-east-1"),
	}
	if accessKey, hasAccess := os.LookupEnv("TESK_S3_ACCESS_KEY"); hasAccess {
		secretKey := os.Getenv("TESK_S3_SECRET_KEY")
		opts = append(opts, awsconfig.WithCredentialsProvider(
			credentials.NewStaticCredentialsProvider(accessKey, secretKey, ""),
		))
	}
	cfg, err := awsconfig.LoadDefaultConfig(ctx, opts...)
	if err != nil {
		return nil, &core.ProtocolRejectError{Protocol: "s3", Detail: fmt.Sprintf("loading client config: %s", err)}
	}

	client := s3.NewFromConfig(cfg, func(o *s3.Options) {
		o.BaseEndpoint = &endpoint
		o.UsePathStyle = true
	})

	return &s3Transput{client: client, bucket: bucket, object: object}, nil
}

// bucketAndObject splits a url path into its leading bucket component and
// the remaining object key, mirroring get_bucket_object: the first
// path segment names the bucket, everything after it is the key.
func bucketAndObject(urlPath string) (bucket, object string, err error) {
	trimmed := strings.Trim(urlPath, "/")
	if trimmed == "" {
		return "", "", &core.MalformedInputError{Reason: "s3 url has no bucket"}
	}
	parts := strings.SplitN(trimmed, "/", 2)
	bucket = parts[0]
	if len(parts) == 2 {
		object = strings.TrimSuffix(parts[1], "/")
	}
	return bucket, object, nil
}

func (s *s3Transput) Close() error { return nil }

func (s *s3Transput) Download(ctx context.Context, entry core.IOEntry, localPath string) error {
	if entry.Type == core.TypeDirectory {
		return s.downloadDir(ctx, localPath)
	}
	return s.downloadFile(ctx, s.object, localPath)
}

func (s *s3Transput) Upload(ctx context.Context, entry core.IOEntry, localPath string) error {
	if entry.Type == core.TypeDirectory {
		return s.uploadDir(ctx, s.object, localPath)
	}
	return s.uploadFile(ctx, s.object, localPath)
}

func (s *s3Transput) downloadFile(ctx context.Context, key, localPath string) error {
	if err := ensureParentDir(localPath); err != nil {
		return err
	}
	out, err := s.client.GetObject(ctx, &s3.GetObjectInput{Bucket: &s.bucket, Key: &key})
	if err != nil {
		return &core.ProtocolRejectError{Protocol: "s3", Detail: fmt.Sprintf("getting object %q: %s", key, err)}
	}
	defer out.Body.Close()
	file, err := os.Create(localPath)
	if err != nil {
		return err
	}
	defer file.Close()
	if _, err := file.ReadFrom(out.Body); err != nil {
		return &core.ProtocolRejectError{Protocol: "s3", Detail: fmt.Sprintf("downloading object %q: %s", key, err)}
	}
	return nil
}

// downloadDir lists every object under the transput's key prefix and
// reconstructs the directory tree under localPath, trimming the prefix's
// parent segment the same way the offset math in the original filer does.
func (s *s3Transput) downloadDir(ctx context.Context, localPath string) error {
	subfolders := SubfoldersIn(s.object)
	offset := 0
	if len(subfolders) > 1 {
		offset = len(subfolders[len(subfolders)-2]) + 1
	}

	if !strings.HasSuffix(localPath, "/") {
		localPath += "/"
	}

	paginator := s3.NewListObjectsV2Paginator(s.client, &s3.ListObjectsV2Input{
		Bucket: &s.bucket,
		Prefix: &s.object,
	})
	for paginator.HasMorePages() {
		page, err := paginator.NextPage(ctx)
		if err != nil {
			return &core.ProtocolRejectError{Protocol: "s3", Detail: fmt.Sprintf("listing prefix %q: %s", s.object, err)}
		}
		for _, obj := range page.Contents {
			key := *obj.Key
			relative := key
			if offset <= len(key) {
				relative = key[offset:]
			}
			dir := parentDir(relative)
			fullDir := localPath + dir
			if err := os.MkdirAll(fullDir, 0o755); err != nil {
				return err
			}
			filePath := fullDir + "/" + lastPathSegment(key)
			if err := s.downloadFile(ctx, key, filePath); err != nil {
				return err
			}
		}
	}
	return nil
}

func (s *s3Transput) uploadFile(ctx context.Context, key, localPath string) error {
	if err := s.ensureBucket(ctx); err != nil {
		return err
	}
	file, err := os.Open(localPath)
	if err != nil {
		return err
	}
	defer file.Close()
	_, err = s.client.PutObject(ctx, &s3.PutObjectInput{Bucket: &s.bucket, Key: &key, Body: file})
	if err != nil {
		return &core.ProtocolRejectError{Protocol: "s3", Detail: fmt.Sprintf("putting object %q: %s", key, err)}
	}
	return nil
}

// ensureBucket creates the transput's bucket on first upload, swallowing the
// "already owned by you" / "already exists" errors a concurrent or repeat
// upload would otherwise surface.
func (s *s3Transput) ensureBucket(ctx context.Context) error {
	_, err := s.client.CreateBucket(ctx, &s3.CreateBucketInput{Bucket: &s.bucket})
	if err == nil {
		return nil
	}
	var ownedByYou *s3types.BucketAlreadyOwnedByYou
	var alreadyExists *s3types.BucketAlreadyExists
	if errors.As(err, &ownedByYou) || errors.As(err, &alreadyExists) {
		return nil
	}
	return &core.ProtocolRejectError{Protocol: "s3", Detail: fmt.Sprintf("creating bucket %q: %s", s.bucket, err)}
}

func (s *s3Transput) uploadDir(ctx context.Context, key, localPath string) error {
	children, err := listLocalDir(localPath)
	if err != nil {
		return err
	}
	for _, child := range children {
		childLocal := localPath + "/" + child.Name
		childKey := key + "/" + child.Name
		if child.IsDir {
			if err := s.uploadDir(ctx, childKey, childLocal); err != nil {
				return err
			}
			continue
		}
		if err := s.uploadFile(ctx, childKey, childLocal); err != nil {
			return err
		}
	}
	return nil
}

func lastPathSegment(path string) string {
	trimmed := strings.TrimRight(path, "/")
	idx := strings.LastIndex(trimmed, "/")
	if idx < 0 {
		return trimmed
	}
	return trimmed[idx+1:]
}
