// Package identity 解析客户端提供的投稿标识。
//
// 历史数据存在两种标识方案：ObjectID 类型的 _id，以及字符串类型的 _id
// 或冗余 id 字段。所有按标识定位记录的操作都经由这里，以便将来统一迁移。
package identity

import (
	"fmt"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
)

// Field 冗余的字符串标识字段名
const Field = "id"

// Filter 构建匹配任意一种标识方案的查询条件
//
// 只有 raw 是合法的 24 位十六进制时才加入 ObjectID 条件；
// 非法标识不会报错，只是匹配不到记录。
func Filter(raw string) bson.M {
	clauses := bson.A{}
	if oid, err := primitive.ObjectIDFromHex(raw); err == nil {
		clauses = append(clauses, bson.M{"_id": oid})
	}
	clauses = append(clauses,
		bson.M{Field: raw},
		bson.M{"_id": raw},
	)
	return bson.M{"$or": clauses}
}

// Matches 判断一条记录是否与 Filter(raw) 匹配，供非文档数据库实现复用
//
// nativeID 为记录的 _id（primitive.ObjectID、string 或 nil），
// denormID 为冗余 id 字段，空字符串表示字段缺失。
func Matches(raw string, nativeID any, denormID string) bool {
	switch v := nativeID.(type) {
	case primitive.ObjectID:
		if oid, err := primitive.ObjectIDFromHex(raw); err == nil && oid == v {
			return true
		}
	case string:
		if v == raw {
			return true
		}
	}
	return denormID != "" && denormID == raw
}

// External 返回记录的对外标识：优先 _id 的字符串形式，否则使用冗余 id 字段
func External(nativeID any, denormID string) string {
	switch v := nativeID.(type) {
	case nil:
		return denormID
	case primitive.ObjectID:
		if v.IsZero() {
			return denormID
		}
		return v.Hex()
	case string:
		if v == "" {
			return denormID
		}
		return v
	default:
		return fmt.Sprint(v)
	}
}
