package store

import (
	"opencanvas-service/feed"
	"opencanvas-service/model"

	"go.mongodb.org/mongo-driver/bson"
)

const scoreField = "anonymousEngagementScore"

// rankSort is the feed order: (score DESC, _id DESC).
var rankSort = bson.D{
	{Key: scoreField, Value: -1},
	{Key: "_id", Value: -1},
}

// feedProjection hides the fields anonymous readers never see.
var feedProjection = bson.M{
	"totalDislikes":      0,
	"totalCompleteReads": 0,
}

// rescoreProjection keeps only the inputs of the score.
var rescoreProjection = bson.M{
	"totalViews":         1,
	"totalCompleteReads": 1,
	"totalShares":        1,
	"totalLikes":         1,
	"totalDislikes":      1,
	"createdAt":          1,
	"modifiedAt":         1,
}

// RankFilter selects the public posts of a feed that come strictly after
// the cursor in feed order.
func RankFilter(kind feed.Kind, after *feed.Cursor) bson.M {
	filter := bson.M{"isPublic": true}
	if kind == feed.KindSocial {
		filter["type"] = model.TypeSocial
	}
	if after != nil {
		filter["$or"] = bson.A{
			bson.M{scoreField: bson.M{"$lt": after.Score}},
			bson.M{scoreField: after.Score, "_id": bson.M{"$lt": after.LastID}},
		}
	}
	return filter
}
