package kafka

import (
	"Carhub/internal/pkg/consts"
	"Carhub/internal/pkg/notify"
	"Carhub/internal/service"
	"context"
	"fmt"
	log "log/slog"

	"github.com/IBM/sarama"
)

const (
	MetaListingID    = "listingId"
	MetaRejectReason = "rejectReason"
)

type listingTransition struct {
	typ     notify.Type
	title   string
	message string
}

var listingTransitions = map[string]listingTransition{
	consts.ListingStatusPublished: {notify.TypeListingPublished, "Listing published", "Your listing \"%s\" is now live"},
	consts.ListingStatusApproved:  {notify.TypeListingApproved, "Listing approved", "Your listing \"%s\" passed review"},
	consts.ListingStatusRejected:  {notify.TypeListingRejected, "Listing rejected", "Your listing \"%s\" did not pass review"},
	consts.ListingStatusExpired:   {notify.TypeListingExpired, "Listing expired", "Your listing \"%s\" has expired and is no longer visible"},
}

type listingHandler struct {
	notifier Notifier
}

// NewListingHandler listings 表：发布与审核状态变化
func NewListingHandler(notifier Notifier) sarama.ConsumerGroupHandler {
	h := &listingHandler{notifier: notifier}
	return newCanalHandler("listing", h.handleRow, "listings")
}

func (h *listingHandler) handleRow(ctx context.Context, msg *CanalMessage, i int) error {
	row := msg.Data[i]
	status := StrValue(row["status"])

	switch msg.Type {
	case INSERT:
		if status != consts.ListingStatusPublished {
			return nil
		}
	case UPDATE:
		old, ok := msg.Changed(i, "status")
		if !ok || StrValue(old) == status {
			return nil
		}
	default:
		return nil
	}

	tr, ok := listingTransitions[status]
	if !ok {
		return nil
	}
	listingID := StrToUint64(row["id"])
	ownerID := StrToUint64(row["user_id"])
	if listingID == 0 || ownerID == 0 {
		log.WarnContext(ctx, "listing row without id or owner", "row", row)
		return nil
	}

	message := fmt.Sprintf(tr.message, StrValue(row["title"]))
	meta := map[string]any{MetaListingID: listingID}
	if tr.typ == notify.TypeListingRejected {
		if reason := StrValue(row["reject_reason"]); reason != "" {
			message += ": " + reason
			meta[MetaRejectReason] = reason
		}
	}

	_, err := h.notifier.CreateAndDeliver(ctx, ownerID, tr.title, message, tr.typ, &service.NotifyOptions{
		Link:      "/listings/" + idStr(listingID),
		SubjectID: listingID,
		Metadata:  meta,
		Source:    sourceOf(msg),
		DedupKey:  fmt.Sprintf("listing:%d:%s", listingID, status),
	})
	return err
}
