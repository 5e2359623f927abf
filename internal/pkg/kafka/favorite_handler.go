package kafka

import (
	"Carhub/internal/pkg/notify"
	"Carhub/internal/service"
	"context"
	"fmt"

	"github.com/IBM/sarama"
)

const MetaFanID = "userId"

type favoriteHandler struct {
	notifier Notifier
	listings service.ListingDirectory
}

// NewFavoriteHandler favorites 表：收藏通知车源发布者
func NewFavoriteHandler(notifier Notifier, listings service.ListingDirectory) sarama.ConsumerGroupHandler {
	h := &favoriteHandler{notifier: notifier, listings: listings}
	return newCanalHandler("favorite", h.handleRow, "favorites")
}

func (h *favoriteHandler) handleRow(ctx context.Context, msg *CanalMessage, i int) error {
	if msg.Type != INSERT {
		return nil
	}
	row := msg.Data[i]
	rowID := StrToUint64(row["id"])
	userID := StrToUint64(row["user_id"])
	listingID := StrToUint64(row["listing_id"])
	if listingID == 0 {
		return nil
	}

	listing, err := h.listings.Lookup(ctx, listingID)
	if err != nil {
		return err
	}
	// 车源已删除或自己收藏自己
	if listing == nil || listing.OwnerID == userID {
		return nil
	}

	_, err = h.notifier.CreateAndDeliver(ctx, listing.OwnerID,
		"New favorite",
		fmt.Sprintf("Someone added \"%s\" to their favorites", listing.Title),
		notify.TypeListingLiked,
		&service.NotifyOptions{
			Link:      "/listings/" + idStr(listingID),
			SubjectID: listingID,
			Metadata:  map[string]any{MetaListingID: listingID, MetaFanID: userID},
			Source:    sourceOf(msg),
			DedupKey:  "favorite:" + idStr(rowID),
		})
	return err
}
