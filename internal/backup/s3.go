package backup

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/aws/aws-sdk-go-v2/service/s3/types"
	"github.com/dmitrijs2005/almacen/internal/common"
	"github.com/dmitrijs2005/almacen/internal/models"
)

// S3API is the part of *s3.Client used by S3Destination.
type S3API interface {
	PutObject(ctx context.Context, in *s3.PutObjectInput, optFns ...func(*s3.Options)) (*s3.PutObjectOutput, error)
	GetObject(ctx context.Context, in *s3.GetObjectInput, optFns ...func(*s3.Options)) (*s3.GetObjectOutput, error)
	HeadObject(ctx context.Context, in *s3.HeadObjectInput, optFns ...func(*s3.Options)) (*s3.HeadObjectOutput, error)
	DeleteObject(ctx context.Context, in *s3.DeleteObjectInput, optFns ...func(*s3.Options)) (*s3.DeleteObjectOutput, error)
	ListObjectsV2(ctx context.Context, in *s3.ListObjectsV2Input, optFns ...func(*s3.Options)) (*s3.ListObjectsV2Output, error)
}

// S3Config holds the connection settings of an S3-compatible store.
type S3Config struct {
	Region    string
	Endpoint  string
	AccessKey string
	SecretKey string
}

var loadDefaultAWSConfig = config.LoadDefaultConfig

// NewS3Client builds a client for cfg. Static credentials are used when
// given, otherwise the default AWS credential chain applies. A custom
// endpoint switches to path-style addressing, as MinIO expects.
func NewS3Client(ctx context.Context, cfg S3Config) (*s3.Client, error) {
	opts := []func(*config.LoadOptions) error{config.WithRegion(cfg.Region)}
	if cfg.AccessKey != "" {
		opts = append(opts, config.WithCredentialsProvider(
			credentials.NewStaticCredentialsProvider(cfg.AccessKey, cfg.SecretKey, "")))
	}

	awsCfg, err := loadDefaultAWSConfig(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("failed to load aws config: %w", err)
	}

	return s3.NewFromConfig(awsCfg, func(o *s3.Options) {
		if cfg.Endpoint != "" {
			o.BaseEndpoint = aws.String(cfg.Endpoint)
			o.UsePathStyle = true
		}
	}), nil
}

// S3Destination keeps backups as objects under a key prefix: <prefix><id>.bak
// holds the artifact and <prefix><id>.json its BackupInfo.
type S3Destination struct {
	client S3API
	bucket string
	prefix string
}

var _ Destination = (*S3Destination)(nil)

func NewS3Destination(client S3API, bucket, prefix string) *S3Destination {
	if prefix != "" && !strings.HasSuffix(prefix, "/") {
		prefix += "/"
	}
	return &S3Destination{client: client, bucket: bucket, prefix: prefix}
}

func (d *S3Destination) Name() string { return "s3" }

func (d *S3Destination) keys(id string) (string, string) {
	return d.prefix + id + dataExt, d.prefix + id + infoExt
}

func isNotFound(err error) bool {
	var nsk *types.NoSuchKey
	var nf *types.NotFound
	return errors.As(err, &nsk) || errors.As(err, &nf)
}

func (d *S3Destination) Put(ctx context.Context, info *models.BackupInfo, data []byte) error {
	if !validID(info.ID) {
		return fmt.Errorf("invalid backup id %q", info.ID)
	}
	dataKey, infoKey := d.keys(info.ID)
	info.Location = "s3://" + d.bucket + "/" + dataKey

	_, err := d.client.PutObject(ctx, &s3.PutObjectInput{
		Bucket:        aws.String(d.bucket),
		Key:           aws.String(dataKey),
		Body:          bytes.NewReader(data),
		ContentLength: aws.Int64(int64(len(data))),
		ContentType:   aws.String("application/octet-stream"),
	})
	if err != nil {
		return fmt.Errorf("failed to upload backup: %w", err)
	}

	meta, err := json.Marshal(info)
	if err != nil {
		return err
	}
	_, err = d.client.PutObject(ctx, &s3.PutObjectInput{
		Bucket:        aws.String(d.bucket),
		Key:           aws.String(infoKey),
		Body:          bytes.NewReader(meta),
		ContentLength: aws.Int64(int64(len(meta))),
		ContentType:   aws.String("application/json"),
	})
	if err != nil {
		return fmt.Errorf("failed to upload backup info: %w", err)
	}
	return nil
}

func (d *S3Destination) getObject(ctx context.Context, key string) ([]byte, error) {
	out, err := d.client.GetObject(ctx, &s3.GetObjectInput{
		Bucket: aws.String(d.bucket),
		Key:    aws.String(key),
	})
	if isNotFound(err) {
		return nil, common.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to download %s: %w", key, err)
	}
	defer out.Body.Close()
	return io.ReadAll(out.Body)
}

func (d *S3Destination) Get(ctx context.Context, id string) ([]byte, error) {
	if !validID(id) {
		return nil, common.ErrNotFound
	}
	dataKey, _ := d.keys(id)
	return d.getObject(ctx, dataKey)
}

func (d *S3Destination) List(ctx context.Context) ([]models.BackupInfo, error) {
	infos := []models.BackupInfo{}

	p := s3.NewListObjectsV2Paginator(d.client, &s3.ListObjectsV2Input{
		Bucket: aws.String(d.bucket),
		Prefix: aws.String(d.prefix),
	})
	for p.HasMorePages() {
		page, err := p.NextPage(ctx)
		if err != nil {
			return nil, fmt.Errorf("failed to list backups: %w", err)
		}
		for _, obj := range page.Contents {
			key := aws.ToString(obj.Key)
			id := strings.TrimSuffix(strings.TrimPrefix(key, d.prefix), infoExt)
			if !strings.HasSuffix(key, infoExt) || !validID(id) {
				continue
			}
			raw, err := d.getObject(ctx, key)
			if err != nil {
				return nil, err
			}
			var info models.BackupInfo
			if err := json.Unmarshal(raw, &info); err != nil {
				continue
			}
			infos = append(infos, info)
		}
	}
	sortNewestFirst(infos)
	return infos, nil
}

func (d *S3Destination) Delete(ctx context.Context, id string) error {
	if !validID(id) {
		return common.ErrNotFound
	}
	dataKey, infoKey := d.keys(id)

	_, err := d.client.HeadObject(ctx, &s3.HeadObjectInput{
		Bucket: aws.String(d.bucket),
		Key:    aws.String(infoKey),
	})
	if isNotFound(err) {
		return common.ErrNotFound
	}
	if err != nil {
		return fmt.Errorf("failed to stat backup: %w", err)
	}

	for _, key := range []string{dataKey, infoKey} {
		if _, err := d.client.DeleteObject(ctx, &s3.DeleteObjectInput{
			Bucket: aws.String(d.bucket),
			Key:    aws.String(key),
		}); err != nil {
			return fmt.Errorf("failed to delete %s: %w", key, err)
		}
	}
	return nil
}
