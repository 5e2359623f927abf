package kafka

import (
	"Carhub/internal/pkg/notify"
	"Carhub/internal/service"
	"context"
	"fmt"

	"github.com/IBM/sarama"
)

const MetaViewerID = "viewerId"

type viewHandler struct {
	notifier Notifier
	listings service.ListingDirectory
}

// NewViewHandler listing_views / profile_views 表：浏览量通知，高频类型走聚合窗口
func NewViewHandler(notifier Notifier, listings service.ListingDirectory) sarama.ConsumerGroupHandler {
	h := &viewHandler{notifier: notifier, listings: listings}
	return newCanalHandler("view", h.handleRow, "listing_views", "profile_views")
}

func (h *viewHandler) handleRow(ctx context.Context, msg *CanalMessage, i int) error {
	if msg.Type != INSERT {
		return nil
	}
	if msg.Table == "profile_views" {
		return h.profileView(ctx, msg, i)
	}
	return h.listingView(ctx, msg, i)
}

func (h *viewHandler) listingView(ctx context.Context, msg *CanalMessage, i int) error {
	row := msg.Data[i]
	viewerID := StrToUint64(row["viewer_id"])
	listingID := StrToUint64(row["listing_id"])
	if listingID == 0 {
		return nil
	}
	listing, err := h.listings.Lookup(ctx, listingID)
	if err != nil {
		return err
	}
	if listing == nil || listing.OwnerID == viewerID {
		return nil
	}

	_, err = h.notifier.CreateAndDeliver(ctx, listing.OwnerID,
		"New view",
		fmt.Sprintf("Someone viewed \"%s\"", listing.Title),
		notify.TypeListingViewed,
		&service.NotifyOptions{
			Link:      "/listings/" + idStr(listingID),
			SubjectID: listingID,
			Metadata:  map[string]any{MetaListingID: listingID, MetaViewerID: viewerID},
			Source:    sourceOf(msg),
			DedupKey:  "listing_view:" + idStr(StrToUint64(row["id"])),
		})
	return err
}

func (h *viewHandler) profileView(ctx context.Context, msg *CanalMessage, i int) error {
	row := msg.Data[i]
	viewerID := StrToUint64(row["viewer_id"])
	profileID := StrToUint64(row["profile_user_id"])
	if profileID == 0 || profileID == viewerID {
		return nil
	}

	_, err := h.notifier.CreateAndDeliver(ctx, profileID,
		"New profile view",
		"Someone viewed your profile",
		notify.TypeProfileViewed,
		&service.NotifyOptions{
			Link:      "/profile/visitors",
			SubjectID: viewerID,
			Metadata:  map[string]any{MetaViewerID: viewerID},
			Source:    sourceOf(msg),
			DedupKey:  "profile_view:" + idStr(StrToUint64(row["id"])),
		})
	return err
}
