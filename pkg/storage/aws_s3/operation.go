package aws_s3

import (
	"bytes"
	"context"
	"time"

	"github.com/pantrylabs/pantry-sync-service/pkg/fileurl"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/aws/aws-sdk-go-v2/service/s3/types"
	"github.com/pkg/errors"
)

// SendContent 上传内容到 bucket，返回对象 key
func (p *S3) SendContent(pathKey string, content []byte, modTime time.Time) (string, error) {
	ctx := context.Background()
	bucket := p.Config.BucketName

	fileKey := fileurl.PathSuffixCheckAdd(p.Config.CustomPath, "/") + pathKey

	_, err := p.S3Client.PutObject(ctx, &s3.PutObjectInput{
		Bucket:            aws.String(bucket),
		Key:               aws.String(fileKey),
		Body:              bytes.NewReader(content),
		ChecksumAlgorithm: types.ChecksumAlgorithmSha256,
	})
	if err != nil {
		var noBucket *types.NoSuchBucket
		if errors.As(err, &noBucket) {
			return "", errors.Wrapf(noBucket, "aws_s3: bucket %s does not exist", bucket)
		}
		return "", errors.Wrap(err, "aws_s3")
	}

	return fileKey, nil
}

// Delete 删除对象
func (p *S3) Delete(pathKey string) error {
	fileKey := fileurl.PathSuffixCheckAdd(p.Config.CustomPath, "/") + pathKey

	_, err := p.S3Client.DeleteObject(context.Background(), &s3.DeleteObjectInput{
		Bucket: aws.String(p.Config.BucketName),
		Key:    aws.String(fileKey),
	})
	return errors.Wrap(err, "aws_s3")
}
