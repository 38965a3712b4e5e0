package runner

import (
	"regexp"
	"strconv"
)

// unity测试菜单行格式:
//   (1)	"usb device cdc" [cdc_acm][usb_device]
var (
	menuEntryRe = regexp.MustCompile(`^\((\d+)\)\s+"([^"]+)"(.*)$`)
	tagRe       = regexp.MustCompile(`\[([^\[\]]+)\]`)
)

// 菜单协议的固定行
const (
	MenuTerminator = "Enter test for running."
)

// multiDeviceTag 标记需要多板协同的用例，单板流程跳过
const multiDeviceTag = "multi_device"

// Case 固件测试菜单中的一个用例
type Case struct {
	Index       int      `json:"index"`  // 菜单序号（运行时写入的编号）
	Name        string   `json:"name"`   // 用例标题
	Groups      []string `json:"groups"` // 所属测试组
	MultiDevice bool     `json:"multi_device"`
}

// InGroup 判断用例是否属于指定测试组
func (c *Case) InGroup(group string) bool {
	for _, g := range c.Groups {
		if g == group {
			return true
		}
	}
	return false
}

// parseMenuLine 解析一条菜单行；非菜单行返回nil
func parseMenuLine(line string) *Case {
	m := menuEntryRe.FindStringSubmatch(line)
	if m == nil {
		return nil
	}

	index, err := strconv.Atoi(m[1])
	if err != nil {
		return nil
	}

	c := &Case{
		Index: index,
		Name:  m[2],
	}

	for _, tag := range tagRe.FindAllStringSubmatch(m[3], -1) {
		c.Groups = append(c.Groups, tag[1])
		if tag[1] == multiDeviceTag {
			c.MultiDevice = true
		}
	}

	return c
}

// FilterGroup 返回属于group的用例
func FilterGroup(cases []Case, group string) []Case {
	var out []Case
	for _, c := range cases {
		if c.InGroup(group) {
			out = append(out, c)
		}
	}
	return out
}
