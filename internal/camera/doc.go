// Package camera カメラデバイスの列挙とストリームの管理を担う
//
// # 責務
// - 映像入力デバイスの列挙と選択欄の作り直し（Enumerator）
// - ストリームハンドルのライフサイクル管理（Session）
// - 最新フレームの保持と配信（Preview）
// - V4L2デバイスからのMJPEG取得（FFmpegOpener）
//
// # 仕様
// - Session が同時に持つハンドルは常に1つ以下。新しい取得の前に必ず古いハンドルを解放する
// - 列挙の失敗は呼び出し元に伝えず、ログを出して空の一覧を返す
// - 名前のないデバイスは列挙順に "Câmera N" と表示する
// - SourceFactory で v4l2 と synthetic（テストパターン）を切り替える
//
// # 前提要件
//   - ffmpeg: 画像キャプチャとストリーミングに使用
//     Ubuntu/Debian: sudo apt install ffmpeg
//   - v4l-utils: カメラ名の取得に使用（なくても動作する）
//     Ubuntu/Debian: sudo apt install v4l-utils
//   - videoグループへの参加: デバイスアクセス権限
//     sudo usermod -a -G video $USER
package camera
