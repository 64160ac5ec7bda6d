package main

import (
	"context"
	"fmt"
	"log"
	"os"
	"strings"
	"time"

	"github.com/aaronyhsoh33/market-maker-bot/gateway"
	"github.com/aaronyhsoh33/market-maker-bot/order"
)

// 运维工具：列出子账户全部未完结订单并一次性批量撤掉。
// 引擎异常退出后用它清场。
func main() {
	subaccount := os.Getenv("ETHEREAL_SUBACCOUNT")
	subaccountID := os.Getenv("ETHEREAL_SUBACCOUNT_ID")
	if subaccount == "" || subaccountID == "" {
		log.Fatal("需要 ETHEREAL_SUBACCOUNT 和 ETHEREAL_SUBACCOUNT_ID")
	}

	client := gateway.NewEtherealRESTClient(
		os.Getenv("ETHEREAL_BASE_URL"),
		os.Getenv("ETHEREAL_ADDRESS"),
		os.Getenv("ETHEREAL_PRIVATE_KEY"),
		10*time.Second,
	)

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	fmt.Println("🔸 查询未完结订单...")
	resp, err := client.ListOrders(ctx, subaccountID, []string{"NEW", "PARTIALLY_FILLED"})
	if err != nil {
		log.Fatalf("查询订单失败: %v", err)
	}

	ids := make([]string, 0, len(resp.Data))
	for _, o := range resp.Data {
		if strings.HasPrefix(o.ID, order.SyntheticPrefix) {
			continue
		}
		ids = append(ids, o.ID)
	}
	if len(ids) == 0 {
		fmt.Println("✅ 没有未完结订单，无需清理")
		return
	}

	fmt.Printf("🔸 撤销 %d 笔订单...\n", len(ids))
	cancelResp, err := client.Cancel(ctx, gateway.CancelRequest{
		OrderIDs:   ids,
		Subaccount: subaccount,
	})
	if err != nil {
		log.Fatalf("撤单失败: %v", err)
	}

	fmt.Printf("✅ 已提交撤单: %d 笔\n", len(ids))
	if len(cancelResp.Canceled) > 0 {
		fmt.Printf("   交易所确认: %v\n", cancelResp.Canceled)
	}
}
