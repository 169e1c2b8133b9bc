package blockchain

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"strings"

	"github.com/bytedance/sonic"
)

// shieldClient talks to the compact shield endpoints served next to the node.
type shieldClient struct {
	baseURL string
	http    *http.Client
}

func newShieldClient(baseURL string, client *http.Client) shieldClient {
	return shieldClient{baseURL: strings.TrimRight(baseURL, "/"), http: client}
}

func (c shieldClient) GetShieldBlockList(ctx context.Context) ([]int, error) {
	body, err := getBody(ctx, c.http, c.baseURL+"/getshieldblocks")
	if err != nil {
		return nil, err
	}
	var heights []int
	if err := sonic.Unmarshal(body, &heights); err != nil {
		return nil, fmt.Errorf("decode shield block list: %w", err)
	}
	return heights, nil
}

func (c shieldClient) GetShieldData(ctx context.Context, fromHeight int) (io.ReadCloser, int64, error) {
	url := c.baseURL + "/getshielddata?startBlock=" + strconv.Itoa(fromHeight)
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, 0, err
	}
	resp, err := c.http.Do(req)
	if err != nil {
		return nil, 0, fmt.Errorf("get shield data: %w", err)
	}
	if resp.StatusCode != http.StatusOK {
		resp.Body.Close()
		return nil, 0, fmt.Errorf("get shield data: unexpected status %s", resp.Status)
	}
	return resp.Body, resp.ContentLength, nil
}

func getBody(ctx context.Context, client *http.Client, url string) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, err
	}
	resp, err := client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("get %s: %w", url, err)
	}
	defer resp.Body.Close()
	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("read %s: %w", url, err)
	}
	if resp.StatusCode != http.StatusOK {
		return body, fmt.Errorf("get %s: unexpected status %s", url, resp.Status)
	}
	return body, nil
}
