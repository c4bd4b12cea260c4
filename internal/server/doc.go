// Package server は、プレビュー用のHTTPサーバーを管理します。
//
// キオスク端末の画面には映像を表示できないため、
// カメラの映像はこのサーバー経由でブラウザから確認します。
//
// 責務:
//   - HTTPサーバーの起動と管理
//   - MJPEGとWebSocketによるプレビュー映像の配信
//   - 最新フレームの静止画配信
//   - 映像セッションとデバイス一覧の状態確認API
//
// 仕様:
//   - ルーティングはgin、WebSocketはgorilla/websocketを使用
//   - グレースフルシャットダウンに対応
//   - 複数クライアントの同時接続をサポート
package server
