package s3blob

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/s3"

	"github.com/veilco/market-creation/internal/domain"
)

// ReceiptArchiver stores one JSON snapshot per confirmed market creation,
// keyed by market uid. The archive is an audit trail; the reconciler treats
// upload failures as non-fatal.
type ReceiptArchiver struct {
	client *Client
	now    func() time.Time
}

func NewReceiptArchiver(client *Client) *ReceiptArchiver {
	return &ReceiptArchiver{
		client: client,
		now:    time.Now,
	}
}

// receiptSnapshot is the archived document: the raw receipt plus the market
// uid and archival time so a snapshot is self-describing.
type receiptSnapshot struct {
	MarketUID  string                     `json:"marketUid"`
	ArchivedAt time.Time                  `json:"archivedAt"`
	Receipt    *domain.TransactionReceipt `json:"receipt"`
}

// ArchiveReceipt uploads the receipt under receipts/YYYY-MM/<uid>.json.
func (a *ReceiptArchiver) ArchiveReceipt(ctx context.Context, uid string, receipt *domain.TransactionReceipt) error {
	at := a.now().UTC()
	doc, err := json.Marshal(receiptSnapshot{
		MarketUID:  uid,
		ArchivedAt: at,
		Receipt:    receipt,
	})
	if err != nil {
		return fmt.Errorf("s3blob: encode receipt %s: %w", uid, err)
	}

	key := fmt.Sprintf("receipts/%s/%s.json", at.Format("2006-01"), uid)
	_, err = a.client.s3.PutObject(ctx, &s3.PutObjectInput{
		Bucket:      aws.String(a.client.bucket),
		Key:         aws.String(key),
		Body:        bytes.NewReader(doc),
		ContentType: aws.String("application/json"),
	})
	if err != nil {
		return fmt.Errorf("s3blob: put receipt %s: %w", key, err)
	}
	return nil
}
