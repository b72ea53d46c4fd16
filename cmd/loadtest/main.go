package main

import (
	"bytes"
	"encoding/json"
	"flag"
	"fmt"
	"io"
	"net/http"
	"sync"
	"time"
)

// Result 记录单次请求的 HTTP 结果，便于聚合统计。
type Result struct {
	Status int
	Body   string
	Err    error
}

func main() {
	baseURL := flag.String("base", "http://localhost:8080", "server base url")
	voucherID := flag.Int("voucher", 1, "voucher id")
	stockCheck := flag.Bool("stock", true, "check db stock after test")

	// 超卖测试参数：200 个用户并发抢
	nUsers := flag.Int("users", 200, "distinct users")
	concurrency := flag.Int("c", 50, "max concurrency")
	flag.Parse()

	client := &http.Client{Timeout: 5 * time.Second}

	// 1) 不超卖测试：不同 user 并发
	fmt.Printf("start oversell test: voucher=%d users=%d concurrency=%d\n", *voucherID, *nUsers, *concurrency)
	results := runSeckill(client, *baseURL, *voucherID, *nUsers, *concurrency)
	printSummary("oversell", results)

	if *stockCheck {
		stock, err := getStock(client, *baseURL, *voucherID)
		if err != nil {
			fmt.Println("stock check err:", err)
		} else {
			fmt.Println("final db stock:", stock)
		}
	}

	// 2) 一人一单测试：同一个 user 并发重复抢，至多 1 个 200
	fmt.Println("\nstart one-order-per-user test: same user (10001), 50 requests, concurrency 50")
	results2 := runSeckillSameUser(client, *baseURL, *voucherID, 10001, 50, 50)
	printSummary("one_per_user", results2)
}

func runSeckill(client *http.Client, baseURL string, voucherID int, nUsers int, concurrency int) []Result {
	sem := make(chan struct{}, concurrency)
	var wg sync.WaitGroup
	results := make([]Result, nUsers)

	for i := 0; i < nUsers; i++ {
		wg.Add(1)
		sem <- struct{}{}
		go func(idx int) {
			defer wg.Done()
			defer func() { <-sem }()

			results[idx] = buyOnce(client, baseURL, voucherID, int64(idx+1))
		}(i)
	}

	wg.Wait()
	return results
}

func runSeckillSameUser(client *http.Client, baseURL string, voucherID int, userID int64, total int, concurrency int) []Result {
	sem := make(chan struct{}, concurrency)
	var wg sync.WaitGroup
	results := make([]Result, total)

	for i := 0; i < total; i++ {
		wg.Add(1)
		sem <- struct{}{}
		go func(idx int) {
			defer wg.Done()
			defer func() { <-sem }()

			results[idx] = buyOnce(client, baseURL, voucherID, userID)
		}(i)
	}

	wg.Wait()
	return results
}

func buyOnce(client *http.Client, baseURL string, voucherID int, userID int64) Result {
	url := fmt.Sprintf("%s/api/seckill/vouchers/%d", baseURL, voucherID)
	httpReq, _ := http.NewRequest(http.MethodPost, url, bytes.NewReader(nil))
	httpReq.Header.Set("X-User-ID", fmt.Sprintf("%d", userID))

	resp, err := client.Do(httpReq)
	if err != nil {
		return Result{Err: err}
	}
	defer resp.Body.Close()
	body, _ := io.ReadAll(resp.Body)
	return Result{Status: resp.StatusCode, Body: string(body)}
}

// printSummary 聚合输出不同状态码分布。
func printSummary(name string, results []Result) {
	count := map[int]int{}
	errCount := 0
	for _, r := range results {
		if r.Err != nil {
			errCount++
			continue
		}
		count[r.Status]++
	}
	fmt.Printf("[%s] http status summary:\n", name)
	for _, code := range []int{200, 400, 401, 404, 429, 500} {
		if count[code] > 0 {
			fmt.Printf("  %d -> %d\n", code, count[code])
		}
	}
	if errCount > 0 {
		fmt.Printf("  errors -> %d\n", errCount)
	}
}

// getStock 查询 DB 实时库存，用于压测后校验是否出现超卖。
func getStock(client *http.Client, baseURL string, voucherID int) (int64, error) {
	url := fmt.Sprintf("%s/api/seckill/vouchers/%d/stock", baseURL, voucherID)
	resp, err := client.Get(url)
	if err != nil {
		return 0, err
	}
	defer resp.Body.Close()
	b, _ := io.ReadAll(resp.Body)
	if resp.StatusCode >= 300 {
		return 0, fmt.Errorf("status=%d body=%s", resp.StatusCode, string(b))
	}

	var out struct {
		Code int `json:"code"`
		Data struct {
			Stock int64 `json:"stock"`
		} `json:"data"`
	}
	if err := json.Unmarshal(b, &out); err != nil {
		return 0, err
	}
	return out.Data.Stock, nil
}
