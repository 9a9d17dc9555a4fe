package utils

import "github.com/samber/lo"

// Find 按ID从data中挑选数据，结果按ids的顺序排列
// 说明：ids为空时返回全部数据；找不到的ID记录在failedIDs中
func Find[K comparable, T any](data []T, key func(T) K, ids []K) (okData []T, failedIDs []K) {
	if len(ids) == 0 {
		return data, nil
	}
	byKey := lo.KeyBy(data, key)
	for _, id := range ids {
		if d, ok := byKey[id]; ok {
			okData = append(okData, d)
		} else {
			failedIDs = append(failedIDs, id)
		}
	}
	return
}
