package engine

import (
	"context"
	"fmt"
	"strings"

	"github.com/lvcoi/ytsource/internal/media"
)

// homeBrowseID is the browse target of the personalized home feed.
const homeBrowseID = "FEwhat_to_watch"

// feedItemRenderers are the entry shapes a shelf can carry, in the order
// they are probed. Each value normalizes its renderer into a FeedItem.
var feedItemRenderers = []string{
	"musicTwoRowItemRenderer",
	"musicResponsiveListItemRenderer",
	"videoRenderer",
	"compactVideoRenderer",
	"gridVideoRenderer",
	"playlistRenderer",
	"gridPlaylistRenderer",
	"compactPlaylistRenderer",
	"lockupViewModel",
}

// HomeFeed fetches and normalizes the home feed. Discovery surfaces
// degrade instead of failing: any error is logged and an empty feed
// returned.
func (e *Engine) HomeFeed(ctx context.Context) []media.FeedSection {
	sess, err := e.session(ctx, ClientWeb)
	if err != nil {
		e.log.Warn().Err(err).Msg("home feed session unavailable")
		return nil
	}
	root, err := sess.Browse(ctx, homeBrowseID, nil)
	if err != nil {
		e.log.Warn().Err(err).Msg("home feed browse failed")
		return nil
	}
	return normalizeFeedSections(root)
}

// normalizeFeedSections reduces a browse response to titled shelves of
// classified items. Shelves that normalize to zero items are dropped.
func normalizeFeedSections(root map[string]any) []media.FeedSection {
	var sections []media.FeedSection
	var loose []media.FeedItem

	for _, node := range sectionNodes(root) {
		if shelf, ok := normalizeShelf(node); ok {
			if len(shelf.Items) > 0 {
				sections = append(sections, shelf)
			}
			continue
		}
		// Grid feeds carry items directly, one per section node.
		if item, ok := normalizeFeedItem(node); ok {
			loose = append(loose, item)
		}
	}
	if len(loose) > 0 {
		sections = append(sections, media.FeedSection{Items: loose})
	}
	return sections
}

// sectionNodes locates the section list of a browse response across the
// tabbed shapes the upstream alternates between.
func sectionNodes(root map[string]any) []map[string]any {
	var contents []any
	for _, tabs := range []any{
		getPath(root, "contents", "singleColumnBrowseResultsRenderer", "tabs"),
		getPath(root, "contents", "twoColumnBrowseResultsRenderer", "tabs"),
	} {
		for _, tab := range asSlice(tabs) {
			content := asMap(getPath(asMap(tab), "tabRenderer", "content"))
			if list := asSlice(getPath(content, "sectionListRenderer", "contents")); list != nil {
				contents = append(contents, list...)
			}
			if list := asSlice(getPath(content, "richGridRenderer", "contents")); list != nil {
				contents = append(contents, list...)
			}
		}
	}
	if list := asSlice(getPath(root, "contents", "sectionListRenderer", "contents")); list != nil {
		contents = append(contents, list...)
	}

	var nodes []map[string]any
	for _, c := range contents {
		node := asMap(c)
		if node == nil {
			continue
		}
		// Unwrap the single-child wrappers before shelf probing.
		if inner := asMap(getPath(node, "itemSectionRenderer")); inner != nil {
			for _, c2 := range asSlice(inner["contents"]) {
				if n2 := asMap(c2); n2 != nil {
					nodes = append(nodes, n2)
				}
			}
			continue
		}
		if inner := asMap(getPath(node, "richSectionRenderer", "content")); inner != nil {
			nodes = append(nodes, inner)
			continue
		}
		if inner := asMap(getPath(node, "richItemRenderer", "content")); inner != nil {
			nodes = append(nodes, inner)
			continue
		}
		nodes = append(nodes, node)
	}
	return nodes
}

// shelfShapes maps a shelf renderer key to the paths of its title and
// its item array.
var shelfShapes = []struct {
	key   string
	title []string
	items [][]string
}{
	{"musicCarouselShelfRenderer", []string{"header", "musicCarouselShelfBasicHeaderRenderer", "title"}, [][]string{{"contents"}}},
	{"musicShelfRenderer", []string{"title"}, [][]string{{"contents"}}},
	{"richShelfRenderer", []string{"title"}, [][]string{{"contents"}}},
	{"shelfRenderer", []string{"title"}, [][]string{
		{"content", "verticalListRenderer", "items"},
		{"content", "horizontalListRenderer", "items"},
		{"content", "gridRenderer", "items"},
		{"content", "expandedShelfContentsRenderer", "items"},
	}},
	{"gridRenderer", []string{"header", "gridHeaderRenderer", "title"}, [][]string{{"items"}}},
}

func normalizeShelf(node map[string]any) (media.FeedSection, bool) {
	for _, shape := range shelfShapes {
		shelf := asMap(node[shape.key])
		if shelf == nil {
			continue
		}
		section := media.FeedSection{Title: text(getPath(shelf, shape.title...))}
		for _, itemsPath := range shape.items {
			for _, entry := range asSlice(getPath(shelf, itemsPath...)) {
				entryMap := asMap(entry)
				if entryMap == nil {
					continue
				}
				if inner := asMap(getPath(entryMap, "richItemRenderer", "content")); inner != nil {
					entryMap = inner
				}
				if item, ok := normalizeFeedItem(entryMap); ok {
					section.Items = append(section.Items, item)
				}
			}
		}
		return section, true
	}
	return media.FeedSection{}, false
}

// normalizeFeedItem reduces one entry renderer to a classified FeedItem.
// Entries that classify to unknown or carry no usable id are dropped;
// any other missing metadata degrades to empty fields.
func normalizeFeedItem(node map[string]any) (media.FeedItem, bool) {
	for _, key := range feedItemRenderers {
		renderer := asMap(node[key])
		if renderer == nil {
			continue
		}
		videoID, browseID := rendererTargets(renderer)
		title := rendererTitle(renderer, key)
		subtitle := rendererSubtitle(renderer, key)

		kind := classifyFeedItem(videoID, browseID, subtitle)
		if kind == media.FeedUnknown {
			return media.FeedItem{}, false
		}
		id := videoID
		if kind != media.FeedSong || !isVideoID(videoID) {
			id = browseID
		}
		if id == "" {
			return media.FeedItem{}, false
		}
		thumb := thumbnailURL(renderer)
		if thumb == "" && isVideoID(videoID) {
			thumb = defaultThumbnailURL(videoID)
		}
		return media.FeedItem{
			ID:           id,
			Title:        title,
			Subtitle:     subtitle,
			ThumbnailURL: thumb,
			Kind:         kind,
		}, true
	}
	return media.FeedItem{}, false
}

// rendererTargets pulls the navigation targets out of an entry renderer,
// covering the watch, browse, playlist and view-model variants.
func rendererTargets(renderer map[string]any) (videoID, browseID string) {
	videoID = getString(renderer["videoId"])
	if videoID == "" {
		videoID = getString(getPath(renderer, "navigationEndpoint", "watchEndpoint", "videoId"))
	}
	if videoID == "" {
		videoID = getString(getPath(renderer, "playlistItemData", "videoId"))
	}
	if videoID == "" {
		videoID = getString(getPath(renderer, "overlay", "musicItemThumbnailOverlayRenderer", "content",
			"musicPlayButtonRenderer", "playNavigationEndpoint", "watchEndpoint", "videoId"))
	}
	browseID = getString(getPath(renderer, "navigationEndpoint", "browseEndpoint", "browseId"))
	if browseID == "" {
		browseID = getString(renderer["playlistId"])
	}
	if browseID == "" {
		// Lockup view models carry a bare contentId.
		if cid := getString(renderer["contentId"]); cid != "" {
			if isVideoID(cid) {
				videoID = cid
			} else {
				browseID = cid
			}
		}
	}
	return videoID, browseID
}

func rendererTitle(renderer map[string]any, key string) string {
	if key == "musicResponsiveListItemRenderer" {
		return flexColumnText(renderer, 0)
	}
	if key == "lockupViewModel" {
		return text(getPath(renderer, "metadata", "lockupMetadataViewModel", "title"))
	}
	return text(renderer["title"])
}

func rendererSubtitle(renderer map[string]any, key string) string {
	switch key {
	case "musicResponsiveListItemRenderer":
		return flexColumnText(renderer, 1)
	case "lockupViewModel":
		rows := asSlice(getPath(renderer, "metadata", "lockupMetadataViewModel", "metadata",
			"contentMetadataViewModel", "metadataRows"))
		for _, row := range rows {
			for _, part := range asSlice(getPath(asMap(row), "metadataParts")) {
				if t := text(getPath(asMap(part), "text")); t != "" {
					return t
				}
			}
		}
		return ""
	default:
		for _, field := range []string{"subtitle", "longBylineText", "shortBylineText", "ownerText"} {
			if t := text(renderer[field]); t != "" {
				return t
			}
		}
		return ""
	}
}

func flexColumnText(renderer map[string]any, index int) string {
	cols := asSlice(renderer["flexColumns"])
	if index >= len(cols) {
		return ""
	}
	return text(getPath(asMap(cols[index]), "musicResponsiveListItemFlexColumnRenderer", "text"))
}

// Collection resolves a playlist or album with its ordered items. An
// album browse id is used as-is; a raw playlist id is wrapped in the
// browse form the endpoint expects.
func (e *Engine) Collection(ctx context.Context, collectionID string) (media.Collection, error) {
	if !isCollectionID(collectionID) {
		return media.Collection{}, wrapCategory(CategoryInvalidID, fmt.Errorf("not a collection id: %q", collectionID))
	}
	sess, err := e.session(ctx, ClientAndroidMusic)
	if err != nil {
		return media.Collection{}, err
	}

	browseID := collectionID
	kind := media.CollectionPlaylist
	switch {
	case strings.HasPrefix(collectionID, "MPRE"):
		kind = media.CollectionAlbum
	case strings.HasPrefix(collectionID, "OLAK"):
		kind = media.CollectionAlbum
		browseID = "VL" + collectionID
	case !strings.HasPrefix(collectionID, "VL") && !strings.HasPrefix(collectionID, "FE") &&
		!strings.HasPrefix(collectionID, "UC") && !strings.HasPrefix(collectionID, "MPRE"):
		browseID = "VL" + collectionID
	}

	root, err := sess.Browse(ctx, browseID, nil)
	if err != nil {
		return media.Collection{}, err
	}
	collection := normalizeCollection(root, kind)
	collection.ID = collectionID
	return collection, nil
}

// collectionHeaderKeys are the header renderers probed for a
// collection's title, subtitle and artwork.
var collectionHeaderKeys = []string{
	"musicDetailHeaderRenderer",
	"musicResponsiveHeaderRenderer",
	"musicImmersiveHeaderRenderer",
	"playlistHeaderRenderer",
}

// collectionShelfKeys hold the item arrays of a collection response.
var collectionShelfKeys = []string{
	"musicShelfRenderer",
	"musicPlaylistShelfRenderer",
	"playlistVideoListRenderer",
}

func normalizeCollection(root map[string]any, kind media.CollectionKind) media.Collection {
	collection := media.Collection{Kind: kind}

	for _, header := range collectRenderers(root, collectionHeaderKeys...) {
		if collection.Title == "" {
			collection.Title = text(header["title"])
		}
		if collection.Subtitle == "" {
			collection.Subtitle = text(header["subtitle"])
		}
		if collection.ThumbnailURL == "" {
			collection.ThumbnailURL = thumbnailURL(header)
		}
		if kind == media.CollectionAlbum && collection.Subtitle == "" {
			collection.Subtitle = albumArtist(header)
		}
	}

	artist := ""
	if kind == media.CollectionAlbum {
		for _, header := range collectRenderers(root, collectionHeaderKeys...) {
			if artist = albumArtist(header); artist != "" {
				break
			}
		}
	}

	for _, shelf := range collectRenderers(root, collectionShelfKeys...) {
		for _, entry := range asSlice(shelf["contents"]) {
			entryMap := asMap(entry)
			if entryMap == nil {
				continue
			}
			if item, ok := normalizeCollectionItem(entryMap); ok {
				if kind == media.CollectionAlbum {
					item.Album = collection.Title
					if item.Artist == "" {
						item.Artist = artist
					}
				}
				collection.Items = append(collection.Items, item)
			}
		}
	}
	return collection
}

// normalizeCollectionItem reduces one track row to an Item. Rows without
// a playable video id are skipped; albums intersperse non-playable rows
// for unavailable tracks.
func normalizeCollectionItem(node map[string]any) (media.Item, bool) {
	if renderer := asMap(node["playlistVideoRenderer"]); renderer != nil {
		videoID := getString(renderer["videoId"])
		if !isVideoID(videoID) {
			return media.Item{}, false
		}
		item := media.Item{
			ID:           videoID,
			ContentID:    videoID,
			Title:        text(renderer["title"]),
			Artist:       text(renderer["shortBylineText"]),
			DurationSec:  getInt(renderer["lengthSeconds"]),
			ThumbnailURL: thumbnailURL(renderer),
			Kind:         media.KindTrack,
		}
		if item.DurationSec == 0 {
			item.DurationSec = parseDurationText(text(renderer["lengthText"]))
		}
		if item.ThumbnailURL == "" {
			item.ThumbnailURL = defaultThumbnailURL(videoID)
		}
		return item, item.Title != ""
	}

	renderer := asMap(node["musicResponsiveListItemRenderer"])
	if renderer == nil {
		return media.Item{}, false
	}
	videoID, _ := rendererTargets(renderer)
	if !isVideoID(videoID) {
		return media.Item{}, false
	}
	item := media.Item{
		ID:           videoID,
		ContentID:    videoID,
		Title:        flexColumnText(renderer, 0),
		Artist:       flexColumnText(renderer, 1),
		ThumbnailURL: thumbnailURL(renderer),
		Kind:         media.KindTrack,
	}
	cols := asSlice(renderer["fixedColumns"])
	if len(cols) > 0 {
		item.DurationSec = parseDurationText(text(getPath(asMap(cols[0]),
			"musicResponsiveListItemFixedColumnRenderer", "text")))
	}
	if item.ThumbnailURL == "" {
		item.ThumbnailURL = defaultThumbnailURL(videoID)
	}
	return item, item.Title != ""
}

// collectRenderers walks the whole response tree and gathers every map
// stored under any of the given keys, in depth-first order. The upstream
// nests the same renderer at wildly different depths per client type, so
// positional paths are a losing game for these shapes.
func collectRenderers(root any, keys ...string) []map[string]any {
	var found []map[string]any
	var walk func(any)
	walk = func(node any) {
		switch v := node.(type) {
		case map[string]any:
			for _, key := range keys {
				if m := asMap(v[key]); m != nil {
					found = append(found, m)
				}
			}
			for _, child := range v {
				walk(child)
			}
		case []any:
			for _, child := range v {
				walk(child)
			}
		}
	}
	walk(root)
	return found
}
