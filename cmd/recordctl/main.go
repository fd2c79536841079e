// recordctl 是玩家记录的离线管理工具。
//
// 每条命令都按当前配置打开数据段存储与玩家目录，完成操作后只保存被修改的玩家。
// 服务运行时使用 filesystem 驱动并开启文件监听，修改会被自动重新加载。
package main

import (
	"fmt"
	"os"
)

func main() {
	if err := newRootCmd().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
